package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/smallbiznis/digistore/internal/clock"
)

type AdapterConfig struct {
	WebhookSecret string
	// Tolerance bounds the age of a signed timestamp. Zero disables the check.
	Tolerance time.Duration
	Clock     clock.Clock
}

type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutCompleted, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
