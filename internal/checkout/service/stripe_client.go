package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/digistore/internal/checkout/domain"
	"github.com/smallbiznis/digistore/internal/config"
)

var errStripeNotConfigured = errors.New("stripe_not_configured")

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StripeClient creates hosted checkout sessions over the Stripe REST API.
type StripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewStripeClient(cfg config.Config) domain.SessionCreator {
	return newStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.APIBaseURL, &http.Client{Timeout: 12 * time.Second})
}

func newStripeClient(apiKey, baseURL string, client *http.Client) *StripeClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  client,
	}
}

func (c *StripeClient) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if c.apiKey == "" {
		return nil, errStripeNotConfigured
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("customer_email", req.Email)
	values.Set("success_url", req.SuccessURL)
	values.Set("cancel_url", req.CancelURL)
	values.Set("payment_method_types[]", "card")
	for i, line := range req.Lines {
		prefix := fmt.Sprintf("line_items[%d]", i)
		values.Set(prefix+"[quantity]", strconv.Itoa(line.Quantity))
		values.Set(prefix+"[price_data][currency]", strings.ToLower(req.Currency))
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(line.UnitPrice, 10))
		values.Set(prefix+"[price_data][product_data][name]", line.Name)
		if line.Label != "" {
			values.Set(prefix+"[price_data][product_data][description]", line.Label)
		}
	}
	for key, value := range req.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var session stripeCheckoutSession
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, errors.New("stripe_response_invalid")
	}
	return &domain.Session{ID: session.ID, URL: session.URL}, nil
}

func (c *StripeClient) doRequest(ctx context.Context, method, path string, values url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return errors.New(message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
