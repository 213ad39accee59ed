package domain

import (
	"context"
	"errors"
	"net/http"
)

type Service interface {
	// IngestWebhook verifies, records and applies one provider event. Events
	// that are not fulfilment events are acknowledged with Ignored set.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*IngestResult, error)
}

type IngestResult struct {
	EventID   string
	EventType string
	Ignored   bool
	Duplicate bool
	// Completed is true only for the delivery that completed the order.
	Completed bool
	OrderID   string
}

var (
	ErrProviderNotFound      = errors.New("payment_provider_not_found")
	ErrWebhookNotConfigured  = errors.New("webhook_not_configured")
	ErrInvalidConfig         = errors.New("invalid_payment_config")
	ErrMissingSignature      = errors.New("missing_signature")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrSignatureExpired      = errors.New("signature_expired")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
