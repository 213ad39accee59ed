package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/digistore/internal/clock"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
)

const Provider = "stripe"

const SignatureHeader = "Stripe-Signature"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     cfg.Tolerance,
		clock:         clk,
	}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	clock         clock.Clock
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrMissingSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(a.webhookSecret, timestamp, payload)
	matched := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return paymentdomain.ErrInvalidSignature
	}

	if a.tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.clock.Now().Sub(time.Unix(unix, 0))
		if age < 0 {
			age = -age
		}
		if age > a.tolerance {
			return paymentdomain.ErrSignatureExpired
		}
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.CheckoutCompleted, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case paymentdomain.EventTypeCheckoutCompleted, paymentdomain.EventTypeAsyncPaymentSucceeded:
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	email := strings.TrimSpace(session.CustomerEmail)
	if email == "" && session.CustomerDetails != nil {
		email = strings.TrimSpace(session.CustomerDetails.Email)
	}

	return &paymentdomain.CheckoutCompleted{
		Provider:        Provider,
		ProviderEventID: event.ID,
		EventType:       eventType,
		SessionID:       session.ID,
		Email:           email,
		AmountTotal:     session.AmountTotal,
		Currency:        strings.ToLower(strings.TrimSpace(session.Currency)),
		PaymentStatus:   strings.TrimSpace(session.PaymentStatus),
		Metadata:        session.Metadata,
		OccurredAt:      timestamp(session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

// Sign computes the v1 signature for a timestamp and payload.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, string(payload))))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a Stripe-Signature header, as Stripe would send it.
func SignatureHeaderValue(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, Sign(secret, ts, payload))
}

// CheckoutCompletedPayload builds a paid checkout.session.completed event body.
func CheckoutCompletedPayload(eventID, sessionID, email string, amount int64, currency string, metadata map[string]string, at time.Time) []byte {
	session, _ := json.Marshal(stripeCheckoutSession{
		ID:            sessionID,
		AmountTotal:   amount,
		Currency:      currency,
		CustomerEmail: email,
		PaymentStatus: paymentdomain.PaymentStatusPaid,
		Created:       at.Unix(),
		Metadata:      metadata,
	})
	payload, _ := json.Marshal(stripeEvent{
		ID:      eventID,
		Type:    paymentdomain.EventTypeCheckoutCompleted,
		Created: at.Unix(),
		Data:    stripeEventData{Object: session},
	})
	return payload
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID              string                 `json:"id"`
	AmountTotal     int64                  `json:"amount_total"`
	Currency        string                 `json:"currency"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerDetails *stripeCustomerDetails `json:"customer_details"`
	PaymentStatus   string                 `json:"payment_status"`
	Created         int64                  `json:"created"`
	Metadata        map[string]string      `json:"metadata"`
}

type stripeCustomerDetails struct {
	Email string `json:"email"`
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
