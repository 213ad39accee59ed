// Package storetest wires the storefront services over an in-memory database
// for integration tests.
package storetest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	auditrepo "github.com/smallbiznis/digistore/internal/audit/repository"
	auditservice "github.com/smallbiznis/digistore/internal/audit/service"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	bundlerepo "github.com/smallbiznis/digistore/internal/bundle/repository"
	bundleservice "github.com/smallbiznis/digistore/internal/bundle/service"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	categoryrepo "github.com/smallbiznis/digistore/internal/category/repository"
	categoryservice "github.com/smallbiznis/digistore/internal/category/service"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	checkoutservice "github.com/smallbiznis/digistore/internal/checkout/service"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	downloadrepo "github.com/smallbiznis/digistore/internal/download/repository"
	downloadservice "github.com/smallbiznis/digistore/internal/download/service"
	"github.com/smallbiznis/digistore/internal/events"
	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	newsletterrepo "github.com/smallbiznis/digistore/internal/newsletter/repository"
	newsletterservice "github.com/smallbiznis/digistore/internal/newsletter/service"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	orderrepo "github.com/smallbiznis/digistore/internal/order/repository"
	orderservice "github.com/smallbiznis/digistore/internal/order/service"
	"github.com/smallbiznis/digistore/internal/payment/adapters"
	"github.com/smallbiznis/digistore/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/digistore/internal/payment/repository"
	paymentservice "github.com/smallbiznis/digistore/internal/payment/service"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	productrepo "github.com/smallbiznis/digistore/internal/product/repository"
	productservice "github.com/smallbiznis/digistore/internal/product/service"
	"github.com/smallbiznis/digistore/internal/providers/email"
	"github.com/smallbiznis/digistore/internal/providers/pdf"
	"github.com/smallbiznis/digistore/internal/receipt"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	settingsrepo "github.com/smallbiznis/digistore/internal/settings/repository"
	settingsservice "github.com/smallbiznis/digistore/internal/settings/service"
	"github.com/smallbiznis/digistore/internal/storage"
	"github.com/smallbiznis/digistore/pkg/db/dbtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	WebhookSecret = "whsec_test"
	BaseURL       = "https://shop.test"
	OrderTopic    = "orders.completed"
)

// Env is a fully wired storefront backed by SQLite and in-memory adapters.
type Env struct {
	DB         *gorm.DB
	Clock      *clock.FakeClock
	GenID      *snowflake.Node
	Storefront *config.StorefrontConfigHolder
	Store      *storage.MemoryStore
	Mail       *email.MemoryProvider
	Publisher  *events.MemoryPublisher
	Sessions   *FakeSessions

	Audit      auditdomain.Service
	Categories categorydomain.Service
	Products   productdomain.Service
	Bundles    bundledomain.Service
	Orders     orderdomain.Service
	Issuer     downloaddomain.Issuer
	Gateway    downloaddomain.Gateway
	Settings   settingsdomain.Service
	Receipts   *receipt.Service
	Payments   paymentdomain.Service
	Checkout   checkoutdomain.Service
	Newsletter newsletterdomain.Service

	defaultCategory string
}

// New builds an Env whose clock starts at 2026-03-01 12:00 UTC.
func New(t testing.TB) *Env {
	t.Helper()

	db := dbtest.Open(t,
		&categorydomain.Category{},
		&productdomain.Product{},
		&bundledomain.Bundle{},
		&bundledomain.BundleProduct{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&downloaddomain.DownloadToken{},
		&paymentdomain.EventRecord{},
		&settingsdomain.Setting{},
		&auditdomain.AuditLog{},
		&newsletterdomain.Subscriber{},
	)
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	storefront := config.NewStaticStorefrontConfigHolder(config.DefaultStorefrontConfig())
	cfg := config.Config{
		PublicBaseURL: BaseURL,
		Stripe: config.StripeConfig{
			WebhookSecret:      WebhookSecret,
			Currency:           "usd",
			SignatureTolerance: 300,
		},
		Kafka: config.KafkaConfig{OrderEventsTopic: OrderTopic},
	}

	env := &Env{
		DB:         db,
		Clock:      clk,
		GenID:      node,
		Storefront: storefront,
		Store:      storage.NewMemoryStore(),
		Mail:       &email.MemoryProvider{},
		Publisher:  &events.MemoryPublisher{},
		Sessions:   &FakeSessions{},
	}

	env.Audit = auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	env.Categories = categoryservice.New(categoryservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: categoryrepo.Provide(),
	})
	env.Products = productservice.New(productservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide(),
	})
	env.Bundles = bundleservice.New(bundleservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: bundlerepo.Provide(), ProductSvc: env.Products,
	})
	downloads := downloadrepo.Provide()
	env.Issuer = downloadservice.NewIssuer(downloadservice.IssuerParams{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: downloads, Cfg: cfg, Storefront: storefront,
	})
	env.Gateway = downloadservice.NewGateway(downloadservice.GatewayParams{
		DB: db, Log: log, Clock: clk, Repo: downloads, ProductSvc: env.Products, Store: env.Store,
	})
	env.Orders = orderservice.New(orderservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: orderrepo.Provide(),
		BundleSvc: env.Bundles, Issuer: env.Issuer,
	})
	env.Settings = settingsservice.New(settingsservice.Params{
		DB: db, Log: log, Clock: clk, Repo: settingsrepo.Provide(), Storefront: storefront,
	})
	env.Receipts = receipt.New(receipt.Params{
		Log: log, Email: env.Mail, PDF: pdf.New(), OrderSvc: env.Orders,
		Issuer: env.Issuer, SettingsSvc: env.Settings,
	})
	env.Payments = paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Cfg: cfg, Repo: paymentrepo.Provide(),
		Registry:   adapters.NewRegistry(stripe.NewFactory()),
		OrderSvc:   env.Orders,
		ProductSvc: env.Products,
		BundleSvc:  env.Bundles,
		Receipts:   env.Receipts,
		Publisher:  env.Publisher,
	})
	env.Checkout = checkoutservice.New(checkoutservice.Params{
		Log: log, Cfg: cfg, Storefront: storefront,
		ProductSvc: env.Products, BundleSvc: env.Bundles, OrderSvc: env.Orders,
		Issuer: env.Issuer, Receipts: env.Receipts, Sessions: env.Sessions,
	})
	env.Newsletter = newsletterservice.New(newsletterservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: newsletterrepo.Provide(),
		Email: env.Mail, SettingsSvc: env.Settings,
	})
	return env
}

// DefaultCategory returns the id of a "General" category, creating it on
// first use.
func (e *Env) DefaultCategory(t testing.TB) string {
	t.Helper()
	if e.defaultCategory != "" {
		return e.defaultCategory
	}
	resp, err := e.Categories.Create(context.Background(), categorydomain.CreateRequest{Name: "General"})
	if err != nil {
		t.Fatalf("create default category: %v", err)
	}
	e.defaultCategory = resp.ID
	return e.defaultCategory
}

// Product creates an active product with a stored asset in the default
// category.
func (e *Env) Product(t testing.TB, name string, price int64) *productdomain.Response {
	t.Helper()
	categoryID := e.DefaultCategory(t)
	fileID := fmt.Sprintf("%s.zip", e.GenID.Generate().String())
	if _, err := e.Store.Put(context.Background(), fileID, strings.NewReader(name), "application/zip"); err != nil {
		t.Fatalf("store asset: %v", err)
	}
	resp, err := e.Products.Create(context.Background(), productdomain.CreateRequest{
		Name:       name,
		Type:       "agent",
		Price:      price,
		CategoryID: &categoryID,
		FileID:     &fileID,
	})
	if err != nil {
		t.Fatalf("create product %q: %v", name, err)
	}
	return resp
}

// Bundle creates an active bundle over the given products.
func (e *Env) Bundle(t testing.TB, name string, price int64, products ...*productdomain.Response) *bundledomain.Response {
	t.Helper()
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	resp, err := e.Bundles.Create(context.Background(), bundledomain.CreateRequest{
		Name:       name,
		Price:      price,
		ProductIDs: ids,
	})
	if err != nil {
		t.Fatalf("create bundle %q: %v", name, err)
	}
	return resp
}

// CompletedEvent returns a signed checkout.session.completed delivery for the
// given cart snapshot.
func (e *Env) CompletedEvent(t testing.TB, eventID, sessionID, buyer string, amount int64, items []checkoutdomain.MetadataItem) ([]byte, http.Header) {
	t.Helper()
	metadata, err := checkoutdomain.EncodeItemsMetadata(items)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	payload := stripe.CheckoutCompletedPayload(eventID, sessionID, buyer, amount, "usd", metadata, e.Clock.Now())
	headers := http.Header{}
	headers.Set(stripe.SignatureHeader, stripe.SignatureHeaderValue(WebhookSecret, payload, e.Clock.Now()))
	return payload, headers
}

// Count runs a COUNT query and returns the result.
func (e *Env) Count(t testing.TB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := e.DB.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// FakeSessions records hosted checkout requests.
type FakeSessions struct {
	mu       sync.Mutex
	Requests []checkoutdomain.SessionRequest
	Err      error
}

func (f *FakeSessions) CreateSession(ctx context.Context, req checkoutdomain.SessionRequest) (*checkoutdomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Requests = append(f.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(f.Requests))
	return &checkoutdomain.Session{ID: id, URL: "https://checkout.stripe.test/c/" + id}, nil
}
