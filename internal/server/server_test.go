package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymentService struct {
	result   *paymentdomain.IngestResult
	err      error
	provider string
	payload  []byte
}

func (f *fakePaymentService) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.IngestResult, error) {
	f.provider = provider
	f.payload = payload
	return f.result, f.err
}

type fakeGateway struct {
	lookup   *downloaddomain.LookupResult
	delivery *downloaddomain.Delivery
	err      error
	token    string
}

func (f *fakeGateway) Lookup(ctx context.Context, token string) (*downloaddomain.LookupResult, error) {
	f.token = token
	return f.lookup, f.err
}

func (f *fakeGateway) Consume(ctx context.Context, token string) (*downloaddomain.Delivery, error) {
	f.token = token
	return f.delivery, f.err
}

type fakeCheckoutService struct {
	checkoutdomain.Service
	resp *checkoutdomain.Response
	err  error
	got  checkoutdomain.Request
}

func (f *fakeCheckoutService) Create(ctx context.Context, req checkoutdomain.Request) (*checkoutdomain.Response, error) {
	f.got = req
	return f.resp, f.err
}

func newTestEngine(t *testing.T, s *Server) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	s.engine = r
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.registerPublicRoutes()
	s.registerAdminRoutes()
	return r
}

func doRequest(r http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestWebhookAcknowledgesProcessedEvent(t *testing.T) {
	payments := &fakePaymentService{result: &paymentdomain.IngestResult{EventID: "evt_1", Completed: true, OrderID: "42"}}
	r := newTestEngine(t, &Server{paymentSvc: payments})

	rec := doRequest(r, http.MethodPost, "/webhook", []byte(`{"id":"evt_1"}`), map[string]string{"Stripe-Signature": "t=1,v1=abc"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, "stripe", payments.provider)
	assert.Equal(t, `{"id":"evt_1"}`, string(payments.payload))
}

func TestWebhookSignatureErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"missing", paymentdomain.ErrMissingSignature, http.StatusBadRequest, "No signature"},
		{"invalid", paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "Webhook signature verification failed"},
		{"expired", paymentdomain.ErrSignatureExpired, http.StatusBadRequest, "Webhook signature verification failed"},
		{"processing", assert.AnError, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(t, &Server{paymentSvc: &fakePaymentService{err: tc.err}})

			rec := doRequest(r, http.MethodPost, "/webhook", []byte(`{}`), nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decodeError(t, rec).Message)
		})
	}
}

func TestCheckoutErrorsCarryStorefrontMessages(t *testing.T) {
	checkout := &fakeCheckoutService{err: checkoutdomain.ErrEmptyCart}
	r := newTestEngine(t, &Server{checkoutSvc: checkout})

	rec := doRequest(r, http.MethodPost, "/checkout", []byte(`{"items":[],"email":"a@b.co"}`), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No items in cart", decodeError(t, rec).Message)

	checkout.err = checkoutdomain.ErrEmailRequired
	rec = doRequest(r, http.MethodPost, "/checkout", []byte(`{"items":[{"id":"1","type":"product","quantity":1}]}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required", decodeError(t, rec).Message)
}

func TestCheckoutReturnsSessionURL(t *testing.T) {
	session := "cs_test_1"
	checkout := &fakeCheckoutService{resp: &checkoutdomain.Response{SessionID: &session, URL: "https://checkout.stripe.test/c/cs_test_1"}}
	r := newTestEngine(t, &Server{checkoutSvc: checkout})

	body := `{"items":[{"id":"7","type":"product","name":"Kit","price":1,"quantity":2}],"email":"buyer@example.com"}`
	rec := doRequest(r, http.MethodPost, "/checkout", []byte(body), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessionId":"cs_test_1","url":"https://checkout.stripe.test/c/cs_test_1"}`, rec.Body.String())
	require.Len(t, checkout.got.Items, 1)
	assert.Equal(t, 2, checkout.got.Items[0].Quantity)
}

func TestDownloadStatusMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{downloaddomain.ErrInvalidToken, http.StatusNotFound, "Invalid download token"},
		{downloaddomain.ErrTokenExpired, http.StatusGone, "Download token has expired"},
		{downloaddomain.ErrLimitReached, http.StatusForbidden, "Download limit reached"},
		{downloaddomain.ErrProductNotFound, http.StatusNotFound, "Product not found"},
		{downloaddomain.ErrFileNotFound, http.StatusNotFound, "File not found"},
		{downloaddomain.ErrUnavailable, http.StatusConflict, "This product has no downloadable file"},
		{downloaddomain.ErrProcessingFailed, http.StatusInternalServerError, "Processing failed"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newTestEngine(t, &Server{gateway: &fakeGateway{err: tc.err}})

			rec := doRequest(r, http.MethodGet, "/download/tok123", nil, nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decodeError(t, rec).Message)
		})
	}
}

func TestDownloadStreamsAttachment(t *testing.T) {
	gateway := &fakeGateway{delivery: &downloaddomain.Delivery{
		Body:        io.NopCloser(strings.NewReader("%PDF-1.7")),
		FileName:    "agent-kit.pdf",
		ContentType: "application/pdf",
		Size:        8,
		Remaining:   4,
	}}
	r := newTestEngine(t, &Server{gateway: gateway})

	rec := doRequest(r, http.MethodGet, "/download/tok123", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok123", gateway.token)
	assert.Equal(t, `attachment; filename="agent-kit.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get(headerDownloadsRemaining))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
}

func TestDownloadRedirectsExternalLink(t *testing.T) {
	gateway := &fakeGateway{delivery: &downloaddomain.Delivery{RedirectURL: "https://files.example.com/kit.zip", Remaining: 2}}
	r := newTestEngine(t, &Server{gateway: gateway})

	rec := doRequest(r, http.MethodGet, "/download/tok123", nil, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://files.example.com/kit.zip", rec.Header().Get("Location"))
}

func TestDownloadInfo(t *testing.T) {
	expires := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	gateway := &fakeGateway{lookup: &downloaddomain.LookupResult{
		Product:   downloaddomain.ProductInfo{ID: "9", Name: "Agent Kit", Slug: "agent-kit", Type: "template", Deliverable: true},
		Remaining: 5,
		ExpiresAt: expires,
	}}
	r := newTestEngine(t, &Server{gateway: gateway})

	rec := doRequest(r, http.MethodGet, "/download/tok123/info", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data downloaddomain.LookupResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Agent Kit", body.Data.Product.Name)
	assert.Equal(t, 5, body.Data.Remaining)
	assert.True(t, expires.Equal(body.Data.ExpiresAt))
}

func TestContentDispositionSanitisesName(t *testing.T) {
	assert.Equal(t, `attachment; filename="a_b_.zip"`, contentDisposition("a\"b\n.zip"))
	assert.Equal(t, `attachment; filename="download"`, contentDisposition("  "))
}
