package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/digistore/internal/cart"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	"github.com/smallbiznis/digistore/internal/clock"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requestURI(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.RequestURI()
}

func TestSignedAssetUploadAndFetch(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	signer := storage.NewURLSigner([]byte("asset-secret"), "https://shop.test", time.Hour, clk)
	r := newTestEngine(t, &Server{assets: storage.NewMemoryStore(), signer: signer})

	name := assetName("Cover Image.PNG")
	assert.True(t, strings.HasSuffix(name, "-cover-image.png"), name)

	req := httptest.NewRequest(http.MethodPut, requestURI(t, signer.UploadURL(name)), bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := requestURI(t, signer.DownloadURL(name))
	rec = doRequest(r, http.MethodGet, view, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	clk.Advance(2 * time.Hour)
	rec = doRequest(r, http.MethodGet, view, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Link has expired", decodeError(t, rec).Message)
}

func TestAssetRejectsTamperedSignature(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	signer := storage.NewURLSigner([]byte("asset-secret"), "https://shop.test", time.Hour, clk)
	r := newTestEngine(t, &Server{assets: storage.NewMemoryStore(), signer: signer})

	uri := requestURI(t, signer.UploadURL("a.zip"))
	rec := doRequest(r, http.MethodPut, strings.Replace(uri, "a.zip", "b.zip", 1), []byte("x"), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type fakeCatalog struct {
	productdomain.Service
	products map[string]*productdomain.Response
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*productdomain.Response, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, productdomain.ErrNotFound
}

func newCartServer(t *testing.T, checkout checkoutdomain.Service) *Server {
	t.Helper()
	catalog := &fakeCatalog{products: map[string]*productdomain.Response{
		"11": {ID: "11", Name: "Agent Kit", Price: 799, IsActive: true},
		"12": {ID: "12", Name: "Retired", Price: 100, IsActive: false},
	}}
	return &Server{cartSvc: cart.NewService(cart.Params{
		Log:         zap.NewNop(),
		Persister:   cart.NewMemoryPersister(),
		ProductSvc:  catalog,
		CheckoutSvc: checkout,
	})}
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cart.View {
	t.Helper()
	var body struct {
		Data cart.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestCartRoutes(t *testing.T) {
	r := newTestEngine(t, newCartServer(t, &fakeCheckoutService{}))

	rec := doRequest(r, http.MethodPost, "/cart/c-1/items", []byte(`{"type":"product","id":"11"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(r, http.MethodPost, "/cart/c-1/items", []byte(`{"type":"product","id":"11"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeCart(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, int64(1598), view.Total)
	assert.Equal(t, 2, view.ItemCount)
	assert.True(t, view.IsOpen)

	rec = doRequest(r, http.MethodPatch, "/cart/c-1/items", []byte(`{"type":"product","id":"11","quantity":0}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	rec = doRequest(r, http.MethodPost, "/cart/c-1/items", []byte(`{"type":"product","id":"12"}`), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(r, http.MethodGet, "/cart/bad%20id", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartCheckoutClearsCart(t *testing.T) {
	checkout := &fakeCheckoutService{resp: &checkoutdomain.Response{URL: "https://shop.test/checkout/success?order_id=5"}}
	r := newTestEngine(t, newCartServer(t, checkout))

	rec := doRequest(r, http.MethodPost, "/cart/c-2/items", []byte(`{"type":"product","id":"11"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPost, "/cart/c-2/checkout", []byte(`{"email":"buyer@example.com"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "buyer@example.com", checkout.got.Email)
	require.Len(t, checkout.got.Items, 1)
	assert.Equal(t, "11", checkout.got.Items[0].ID)

	rec = doRequest(r, http.MethodGet, "/cart/c-2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	assert.Empty(t, view.Items)
	assert.False(t, view.IsOpen)
}
