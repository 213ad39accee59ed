package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"gorm.io/gorm"
)

// Policy is the issuing policy in effect when a token is written.
type Policy struct {
	TTL          time.Duration
	MaxDownloads int
	TokenLength  int
}

type Issuer interface {
	// IssueTx runs inside the caller's transaction so tokens commit together
	// with the order completion.
	IssueTx(ctx context.Context, tx *gorm.DB, orderID int64, productIDs []int64) ([]DownloadToken, error)
	Regenerate(ctx context.Context, orderID string, productID string) (*TokenResponse, error)
	ListByOrder(ctx context.Context, orderID string) ([]TokenResponse, error)
	Policy() Policy
	DownloadURL(token string) string
}

type Gateway interface {
	Lookup(ctx context.Context, token string) (*LookupResult, error)
	Consume(ctx context.Context, token string) (*Delivery, error)
}

type TokenResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Token         string    `json:"token"`
	DownloadURL   string    `json:"download_url"`
	ExpiresAt     time.Time `json:"expires_at"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	Remaining     int       `json:"remaining"`
}

type ProductInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Type        string `json:"type"`
	Deliverable bool   `json:"deliverable"`
}

type LookupResult struct {
	Product   ProductInfo `json:"product"`
	Remaining int         `json:"remaining"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Delivery is either a redirect to an external link or a stored asset body.
// The caller closes Body.
type Delivery struct {
	RedirectURL string
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
	Remaining   int
}

func (d *Delivery) IsRedirect() bool {
	return d != nil && d.RedirectURL != ""
}

var (
	ErrInvalidToken      = errors.New("invalid_token")
	ErrTokenExpired      = errors.New("token_expired")
	ErrLimitReached      = errors.New("download_limit_reached")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrUnavailable       = errors.New("download_unavailable")
	ErrFileNotFound      = errors.New("file_not_found")
	ErrProcessingFailed  = errors.New("processing_failed")
	ErrInvalidOrder      = errors.New("invalid_order_id")
	ErrInvalidProduct    = errors.New("invalid_product_id")
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrOrderNotCompleted = errors.New("order_not_completed")
	ErrProductNotInOrder = errors.New("product_not_in_order")
	ErrRegenerateBusy    = errors.New("regenerate_in_progress")
)
