package domain

import (
	"time"

	"gorm.io/datatypes"
)

type EventRecord struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted     = "checkout.session.completed"
	EventTypeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

const (
	PaymentStatusPaid          = "paid"
	PaymentStatusNoPaymentNeed = "no_payment_required"
)

// CheckoutCompleted is the canonical paid checkout session parsed by adapters.
type CheckoutCompleted struct {
	Provider        string
	ProviderEventID string
	EventType       string
	SessionID       string
	Email           string
	AmountTotal     int64
	Currency        string
	PaymentStatus   string
	Metadata        map[string]string
	OccurredAt      time.Time
	RawPayload      []byte
}

// Paid reports whether the session can be fulfilled. Delayed payment methods
// complete the session before funds settle.
func (e *CheckoutCompleted) Paid() bool {
	switch e.PaymentStatus {
	case "", PaymentStatusPaid, PaymentStatusNoPaymentNeed:
		return true
	default:
		return false
	}
}
