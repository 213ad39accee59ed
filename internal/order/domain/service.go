package domain

import (
	"context"
	"errors"
	"time"

	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	// CreatePendingTx records a paid order awaiting completion. A second call
	// for the same session returns the existing order.
	CreatePendingTx(ctx context.Context, tx *gorm.DB, req CreateRequest) (*Order, error)
	// CompleteBySessionTx completes the order and issues its tokens inside tx.
	CompleteBySessionTx(ctx context.Context, tx *gorm.DB, sessionID string) (*Completion, error)
	CompleteOrder(ctx context.Context, sessionID string) (*Completion, error)
	// CreateCompleted is the zero-total path: order, items and tokens in one
	// transaction with no payment session.
	CreateCompleted(ctx context.Context, req CreateRequest) (*Completion, error)
	GetByStripeSession(ctx context.Context, sessionID string) (*Response, error)
	Get(ctx context.Context, id string) (*Detail, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListByEmail(ctx context.Context, email string) ([]Response, error)
	ListAll(ctx context.Context, req ListRequest) (*ListResponse, error)
	UpdateStatus(ctx context.Context, id string, status string) (*Response, error)
}

type ItemInput struct {
	ProductID *int64
	BundleID  *int64
	Name      string
	Quantity  int
	// Price is the line total.
	Price int64
}

type CreateRequest struct {
	Email     string
	Currency  string
	SessionID string
	// Total defaults to the sum of item prices when zero.
	Total int64
	Items []ItemInput
}

// Completion reports the outcome of a completion attempt. Completed is true
// only for the call that moved the order to completed.
type Completion struct {
	Order     *Order
	Completed bool
	Tokens    []downloaddomain.DownloadToken
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	Email  string `form:"email"`
}

type Response struct {
	ID              string     `json:"id"`
	OrderNumber     string     `json:"order_number"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	Total           int64      `json:"total"`
	Currency        string     `json:"currency"`
	StripeSessionID *string    `json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type ItemProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Type string `json:"type"`
}

type ItemBundle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ItemResponse struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Quantity int          `json:"quantity"`
	Price    int64        `json:"price"`
	Product  *ItemProduct `json:"product,omitempty"`
	Bundle   *ItemBundle  `json:"bundle,omitempty"`
}

type Detail struct {
	Response
	Items []ItemResponse `json:"items"`
}

type ListResponse struct {
	Orders   []Response          `json:"orders"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidSession   = errors.New("invalid_session_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidItems     = errors.New("invalid_items")
	ErrInvalidTotal     = errors.New("invalid_total")
	ErrNotFound         = errors.New("order_not_found")
	ErrAlreadyCompleted = errors.New("order_already_completed")
	ErrStatusTransition = errors.New("invalid_status_transition")
)
