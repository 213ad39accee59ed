package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req Request) (*Response, error)
	Success(ctx context.Context, req SuccessRequest) (*SuccessResponse, error)
}

// SessionRequest is what the payment provider needs to host a checkout.
type SessionRequest struct {
	Email      string
	Currency   string
	Lines      []Line
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type Session struct {
	ID  string
	URL string
}

// SessionCreator is the hosted-checkout side of the payment provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

var (
	ErrEmptyCart           = errors.New("empty_cart")
	ErrEmailRequired       = errors.New("email_required")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidItem         = errors.New("invalid_item")
	ErrItemUnavailable     = errors.New("item_unavailable")
	ErrSessionCreateFailed = errors.New("checkout_session_failed")
	ErrInvalidMetadata     = errors.New("invalid_checkout_metadata")
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrMissingReference    = errors.New("missing_order_reference")
)
