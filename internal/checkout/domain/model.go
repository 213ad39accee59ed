package domain

import (
	"strings"
	"time"
)

const (
	ItemTypeProduct = "product"
	ItemTypeBundle  = "bundle"
)

// Item is one cart line as submitted by the client. Name and Price are display
// values only; the catalog is the source of truth for both.
type Item struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type Request struct {
	Items []Item `json:"items"`
	Email string `json:"email"`
}

type Response struct {
	SessionID *string `json:"sessionId"`
	URL       string  `json:"url"`
}

// Line is a cart line priced from the catalog.
type Line struct {
	Type      string
	RefID     int64
	Name      string
	Label     string
	UnitPrice int64
	Quantity  int
}

func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type SuccessRequest struct {
	SessionID string `form:"session_id"`
	OrderID   string `form:"order_id"`
}

type SuccessDownload struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   int       `json:"remaining"`
}

// SuccessResponse backs the post-checkout page. A pending order means the
// payment webhook has not landed yet and the client should poll.
type SuccessResponse struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      string            `json:"status"`
	Email       string            `json:"email"`
	Total       int64             `json:"total"`
	Currency    string            `json:"currency"`
	Downloads   []SuccessDownload `json:"downloads"`
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
