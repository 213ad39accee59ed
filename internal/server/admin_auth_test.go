package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	auditrepo "github.com/smallbiznis/digistore/internal/audit/repository"
	auditservice "github.com/smallbiznis/digistore/internal/audit/service"
	"github.com/smallbiznis/digistore/internal/authorization"
	"github.com/smallbiznis/digistore/internal/clock"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeProductService struct {
	productdomain.Service
	created []productdomain.CreateRequest
	get     map[string]*productdomain.Response
}

func (f *fakeProductService) Create(ctx context.Context, req productdomain.CreateRequest) (*productdomain.Response, error) {
	f.created = append(f.created, req)
	return &productdomain.Response{ID: "1", Name: req.Name, Price: req.Price}, nil
}

func (f *fakeProductService) List(ctx context.Context, req productdomain.ListRequest) ([]productdomain.Response, error) {
	return []productdomain.Response{}, nil
}

func (f *fakeProductService) Get(ctx context.Context, id string) (*productdomain.Response, error) {
	if p, ok := f.get[id]; ok {
		return p, nil
	}
	return nil, productdomain.ErrNotFound
}

func adminKeyEntry(t *testing.T, name, role, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s:%s", name, role, hash)
}

func newAdminTestServer(t *testing.T, products productdomain.Service) *Server {
	t.Helper()
	keys, err := ParseAdminKeys([]string{
		adminKeyEntry(t, "owner", authorization.RoleAdmin, "owner-secret"),
		adminKeyEntry(t, "helpdesk", authorization.RoleSupport, "support-secret"),
	})
	require.NoError(t, err)

	db := dbtest.Open(t, &auditdomain.AuditLog{})
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	return &Server{
		productSvc: products,
		adminKeys:  keys,
		authzSvc:   authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		auditSvc: auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
			Repo:  auditrepo.Provide(),
		}),
	}
}

func bearer(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

func TestParseAdminKeys(t *testing.T) {
	keys, err := ParseAdminKeys([]string{adminKeyEntry(t, "owner", "Admin", "s3cret")})
	require.NoError(t, err)
	require.Equal(t, 1, keys.Len())

	key, ok := keys.Match("s3cret")
	require.True(t, ok)
	assert.Equal(t, "owner", key.Name)
	assert.Equal(t, authorization.RoleAdmin, key.Role)

	_, ok = keys.Match("wrong")
	assert.False(t, ok)
}

func TestParseAdminKeysRejectsMalformedEntries(t *testing.T) {
	for _, entry := range []string{
		"owner",
		"owner:admin",
		"owner:root:$2a$04$abcdefghijklmnopqrstuuAbCdEfGhIjKlMnOpQrStUvWxYz01234",
		"owner:admin:not-a-bcrypt-hash",
		":admin:$2a$04$abc",
	} {
		_, err := ParseAdminKeys([]string{entry})
		assert.ErrorIs(t, err, ErrInvalidAdminKey, entry)
	}
}

func TestAdminRoutesRequireBearerKey(t *testing.T) {
	r := newTestEngine(t, newAdminTestServer(t, &fakeProductService{}))

	rec := doRequest(r, http.MethodGet, "/admin/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodGet, "/admin/products", nil, bearer("guess"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodGet, "/admin/products", nil, bearer("owner-secret"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSupportRoleCannotEditCatalog(t *testing.T) {
	products := &fakeProductService{}
	r := newTestEngine(t, newAdminTestServer(t, products))
	body := []byte(`{"name":"Agent Kit","type":"template","price":799}`)

	rec := doRequest(r, http.MethodPost, "/admin/products", body, bearer("support-secret"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, products.created)

	rec = doRequest(r, http.MethodGet, "/admin/products", nil, bearer("support-secret"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPost, "/admin/products", body, bearer("owner-secret"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, products.created, 1)
	assert.Equal(t, int64(799), products.created[0].Price)
}

func TestAdminGetProductNotFound(t *testing.T) {
	r := newTestEngine(t, newAdminTestServer(t, &fakeProductService{}))

	rec := doRequest(r, http.MethodGet, "/admin/products/123", nil, bearer("owner-secret"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeError(t, rec).Message)
}

func TestAdminChangesLandInAuditLog(t *testing.T) {
	r := newTestEngine(t, newAdminTestServer(t, &fakeProductService{}))

	rec := doRequest(r, http.MethodPost, "/admin/products", []byte(`{"name":"Agent Kit","type":"agent","price":799}`), bearer("owner-secret"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodGet, "/admin/audit-logs?action=product.created", nil, bearer("owner-secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	entry := resp.Data[0]
	assert.Equal(t, string(auditdomain.ActorTypeAdmin), entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "owner", *entry.ActorID)
	assert.Equal(t, "product", entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "1", *entry.TargetID)
	assert.Equal(t, "Agent Kit", entry.Metadata["name"])
	assert.Equal(t, authorization.RoleAdmin, entry.Metadata["actor_role"])

	rec = doRequest(r, http.MethodGet, "/admin/audit-logs", nil, bearer("support-secret"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(r, http.MethodGet, "/admin/audit-logs?start_at=yesterday", nil, bearer("owner-secret"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeOrderService struct {
	orderdomain.Service
	email string
}

func (f *fakeOrderService) ListByEmail(ctx context.Context, email string) ([]orderdomain.Response, error) {
	f.email = email
	if email == "" {
		return nil, orderdomain.ErrInvalidEmail
	}
	return []orderdomain.Response{{ID: "42", Email: email, Status: "completed"}}, nil
}

func TestSupportLooksUpCustomerOrders(t *testing.T) {
	orders := &fakeOrderService{}
	s := newAdminTestServer(t, &fakeProductService{})
	s.orderSvc = orders
	r := newTestEngine(t, s)

	rec := doRequest(r, http.MethodGet, "/admin/customers/orders?email=buyer@example.com", nil, bearer("support-secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer@example.com", orders.email)
	assert.Contains(t, rec.Body.String(), `"id":"42"`)

	rec = doRequest(r, http.MethodGet, "/admin/customers/orders", nil, bearer("support-secret"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
