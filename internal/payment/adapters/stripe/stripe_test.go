package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/digistore/internal/clock"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, now time.Time) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		WebhookSecret: "whsec_test",
		Tolerance:     5 * time.Minute,
		Clock:         clock.NewFakeClock(now),
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	adapter := newAdapter(t, now)

	headers := http.Header{}
	headers.Set(SignatureHeader, SignatureHeaderValue("whsec_test", payload, now))
	require.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set(SignatureHeader, SignatureHeaderValue("wrong", payload, now))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	headers.Set(SignatureHeader, SignatureHeaderValue("whsec_test", []byte(`{"tampered":true}`), now))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	headers.Set(SignatureHeader, "garbage")
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, http.Header{}), paymentdomain.ErrMissingSignature)
}

func TestVerifySignatureTolerance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_old"}`)
	adapter := newAdapter(t, now)

	headers := http.Header{}
	headers.Set(SignatureHeader, SignatureHeaderValue("whsec_test", payload, now.Add(-4*time.Minute)))
	require.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set(SignatureHeader, SignatureHeaderValue("whsec_test", payload, now.Add(-6*time.Minute)))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrSignatureExpired)
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{WebhookSecret: "  "})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestParseCheckoutSession(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	adapter := newAdapter(t, time.Unix(created, 0))

	tests := []struct {
		name      string
		object    map[string]any
		wantEmail string
		wantPaid  bool
	}{{
		name: "customer_email",
		object: map[string]any{
			"id":             "cs_test_1",
			"amount_total":   1598,
			"currency":       "USD",
			"customer_email": "a@b.com",
			"payment_status": "paid",
			"created":        created,
			"metadata":       map[string]string{"items": `[{"id":"1","type":"product","price":799,"quantity":2}]`},
		},
		wantEmail: "a@b.com",
		wantPaid:  true,
	}, {
		name: "customer_details fallback",
		object: map[string]any{
			"id":               "cs_test_2",
			"amount_total":     500,
			"currency":         "usd",
			"customer_details": map[string]any{"email": "c@d.com"},
			"payment_status":   "unpaid",
			"metadata":         map[string]string{},
		},
		wantEmail: "c@d.com",
		wantPaid:  false,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]any{
				"id":      "evt_" + tt.name,
				"type":    "checkout.session.completed",
				"created": created,
				"data":    map[string]any{"object": tt.object},
			})
			require.NoError(t, err)

			event, err := adapter.Parse(context.Background(), payload)
			require.NoError(t, err)
			assert.Equal(t, Provider, event.Provider)
			assert.Equal(t, tt.object["id"], event.SessionID)
			assert.Equal(t, tt.wantEmail, event.Email)
			assert.Equal(t, "usd", event.Currency)
			assert.Equal(t, tt.wantPaid, event.Paid())
		})
	}
}

func TestParseIgnoresOtherEvents(t *testing.T) {
	adapter := newAdapter(t, time.Now())
	_, err := adapter.Parse(context.Background(), []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"type":"checkout.session.completed"}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
