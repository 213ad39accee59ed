package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	downloadrepo "github.com/smallbiznis/digistore/internal/download/repository"
	"github.com/smallbiznis/digistore/internal/download/service"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/storage"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func idOf(t *testing.T, raw string) int64 {
	t.Helper()
	id, err := snowflake.ParseString(raw)
	require.NoError(t, err)
	return id.Int64()
}

// completedOrder buys products for free and returns the order and its tokens
// keyed by product id.
func completedOrder(t *testing.T, env *storetest.Env, products ...*productdomain.Response) (*orderdomain.Order, map[string]string) {
	t.Helper()
	items := make([]orderdomain.ItemInput, 0, len(products))
	for _, p := range products {
		items = append(items, orderdomain.ItemInput{ProductID: ptr(idOf(t, p.ID)), Name: p.Name, Quantity: 1})
	}
	completion, err := env.Orders.CreateCompleted(context.Background(), orderdomain.CreateRequest{Email: "a@b.co", Items: items})
	require.NoError(t, err)

	tokens := map[string]string{}
	for _, token := range completion.Tokens {
		tokens[snowflake.ID(token.ProductID).String()] = token.Token
	}
	return completion.Order, tokens
}

func consume(t *testing.T, env *storetest.Env, token string) (*downloaddomain.Delivery, error) {
	t.Helper()
	delivery, err := env.Gateway.Consume(context.Background(), token)
	if err == nil && delivery.Body != nil {
		_, _ = io.Copy(io.Discard, delivery.Body)
		_ = delivery.Body.Close()
	}
	return delivery, err
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	_, tokens := completedOrder(t, env, kit)
	token := tokens[kit.ID]
	require.Len(t, token, 32)

	info, err := env.Gateway.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Agent Kit", info.Product.Name)
	assert.True(t, info.Product.Deliverable)
	assert.Equal(t, 5, info.Remaining)
	assert.True(t, env.Clock.Now().Add(48*time.Hour).Equal(info.ExpiresAt))

	delivery, err := env.Gateway.Consume(ctx, token)
	require.NoError(t, err)
	body, err := io.ReadAll(delivery.Body)
	require.NoError(t, err)
	require.NoError(t, delivery.Body.Close())
	assert.Equal(t, "Agent Kit", string(body))
	assert.Equal(t, "agent-kit.zip", delivery.FileName)
	assert.Equal(t, 4, delivery.Remaining)

	for i := 0; i < 4; i++ {
		_, err := consume(t, env, token)
		require.NoError(t, err)
	}
	_, err = consume(t, env, token)
	assert.ErrorIs(t, err, downloaddomain.ErrLimitReached)
	_, err = env.Gateway.Lookup(ctx, token)
	assert.ErrorIs(t, err, downloaddomain.ErrLimitReached)
}

func TestTokenExpiry(t *testing.T) {
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	_, tokens := completedOrder(t, env, kit)

	// A token is still good at the exact expiry instant.
	env.Clock.Advance(48 * time.Hour)
	info, err := env.Gateway.Lookup(context.Background(), tokens[kit.ID])
	require.NoError(t, err)
	assert.True(t, env.Clock.Now().Equal(info.ExpiresAt))
	_, err = consume(t, env, tokens[kit.ID])
	require.NoError(t, err)

	env.Clock.Advance(time.Second)
	_, err = consume(t, env, tokens[kit.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrTokenExpired)
	_, err = env.Gateway.Lookup(context.Background(), tokens[kit.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrTokenExpired)
	assert.Equal(t, int64(1), env.Count(t, "SELECT download_count FROM download_tokens WHERE token = ?", tokens[kit.ID]))
}

func TestUnknownToken(t *testing.T) {
	env := storetest.New(t)
	_, err := consume(t, env, "does-not-exist")
	assert.ErrorIs(t, err, downloaddomain.ErrInvalidToken)
	_, err = env.Gateway.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, downloaddomain.ErrInvalidToken)
}

func TestConcurrentConsumeHonoursCap(t *testing.T) {
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	_, tokens := completedOrder(t, env, kit)

	const attempts = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delivery, err := env.Gateway.Consume(context.Background(), tokens[kit.ID])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
				_ = delivery.Body.Close()
			case assert.ErrorIs(t, err, downloaddomain.ErrLimitReached):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, attempts-5, limited)
	assert.Equal(t, int64(5), env.Count(t, "SELECT download_count FROM download_tokens WHERE token = ?", tokens[kit.ID]))
}

func TestConsumeRedirectsExternalLink(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	linked, err := env.Products.Create(ctx, productdomain.CreateRequest{
		Name:        "Hosted Course",
		Type:        "course",
		CategoryID:  ptr(env.DefaultCategory(t)),
		DeliveryURL: ptr("https://files.example.com/course"),
	})
	require.NoError(t, err)
	_, tokens := completedOrder(t, env, linked)

	delivery, err := consume(t, env, tokens[linked.ID])
	require.NoError(t, err)
	assert.True(t, delivery.IsRedirect())
	assert.Equal(t, "https://files.example.com/course", delivery.RedirectURL)
}

func TestConsumeWithoutAsset(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	category := ptr(env.DefaultCategory(t))
	bare, err := env.Products.Create(ctx, productdomain.CreateRequest{Name: "Coming Soon", Type: "template", CategoryID: category})
	require.NoError(t, err)
	_, tokens := completedOrder(t, env, bare)

	_, err = consume(t, env, tokens[bare.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrUnavailable)
	assert.Equal(t, int64(0), env.Count(t, "SELECT download_count FROM download_tokens WHERE token = ?", tokens[bare.ID]))

	missing, err := env.Products.Create(ctx, productdomain.CreateRequest{Name: "Lost File", Type: "template", CategoryID: category, FileID: ptr("gone.pdf")})
	require.NoError(t, err)
	_, tokens = completedOrder(t, env, missing)
	_, err = consume(t, env, tokens[missing.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrFileNotFound)
	assert.Equal(t, int64(1), env.Count(t, "SELECT download_count FROM download_tokens WHERE token = ?", tokens[missing.ID]))

	require.NoError(t, env.Products.Delete(ctx, missing.ID))
	_, err = consume(t, env, tokens[missing.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrProductNotFound)
}

// brokenStore serves writes but fails every read.
type brokenStore struct {
	*storage.MemoryStore
}

func (brokenStore) Open(context.Context, string) (*storage.Object, error) {
	return nil, errors.New("object store unreachable")
}

func TestConsumeKeepsAttemptWhenStoreFails(t *testing.T) {
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	_, tokens := completedOrder(t, env, kit)

	gateway := service.NewGateway(service.GatewayParams{
		DB:         env.DB,
		Log:        zap.NewNop(),
		Clock:      env.Clock,
		Repo:       downloadrepo.Provide(),
		ProductSvc: env.Products,
		Store:      brokenStore{MemoryStore: env.Store},
	})

	_, err := gateway.Consume(context.Background(), tokens[kit.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrProcessingFailed)
	assert.Equal(t, int64(1), env.Count(t, "SELECT download_count FROM download_tokens WHERE token = ?", tokens[kit.ID]))

	info, err := gateway.Lookup(context.Background(), tokens[kit.ID])
	require.NoError(t, err)
	assert.Equal(t, 4, info.Remaining)
}

func TestRegenerate(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	other := env.Product(t, "Other Kit", 0)
	order, tokens := completedOrder(t, env, kit)
	orderID := snowflake.ID(order.ID).String()

	for i := 0; i < 5; i++ {
		_, err := consume(t, env, tokens[kit.ID])
		require.NoError(t, err)
	}
	env.Clock.Advance(72 * time.Hour)

	fresh, err := env.Issuer.Regenerate(ctx, orderID, kit.ID)
	require.NoError(t, err)
	assert.NotEqual(t, tokens[kit.ID], fresh.Token)
	assert.Equal(t, 0, fresh.DownloadCount)
	assert.Equal(t, 5, fresh.Remaining)
	assert.Equal(t, "Agent Kit", fresh.ProductName)
	assert.Equal(t, storetest.BaseURL+"/download/"+fresh.Token, fresh.DownloadURL)

	_, err = consume(t, env, tokens[kit.ID])
	assert.ErrorIs(t, err, downloaddomain.ErrInvalidToken)
	_, err = consume(t, env, fresh.Token)
	require.NoError(t, err)

	listed, err := env.Issuer.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, fresh.Token, listed[0].Token)

	_, err = env.Issuer.Regenerate(ctx, orderID, other.ID)
	assert.ErrorIs(t, err, downloaddomain.ErrProductNotInOrder)
	_, err = env.Issuer.Regenerate(ctx, "99999", kit.ID)
	assert.ErrorIs(t, err, downloaddomain.ErrOrderNotFound)
	_, err = env.Issuer.Regenerate(ctx, "x", kit.ID)
	assert.ErrorIs(t, err, downloaddomain.ErrInvalidOrder)
}

func TestRegenerateRequiresCompletedOrder(t *testing.T) {
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 0)
	order, _ := completedOrder(t, env, kit)
	require.NoError(t, env.DB.Exec("UPDATE orders SET status = ? WHERE id = ?", "pending", order.ID).Error)

	_, err := env.Issuer.Regenerate(context.Background(), snowflake.ID(order.ID).String(), kit.ID)
	assert.ErrorIs(t, err, downloaddomain.ErrOrderNotCompleted)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "stored.pdf", service.FileName(&productdomain.Product{Name: "X", FileName: ptr(" stored.pdf ")}))
	assert.Equal(t, "prompt-pack.pdf", service.FileName(&productdomain.Product{Name: "Prompt Pack!", Type: productdomain.TypeTemplate}))
	assert.Equal(t, "agent-kit.zip", service.FileName(&productdomain.Product{Name: "Agent Kit", Type: "agent"}))
	assert.Equal(t, "download.zip", service.FileName(&productdomain.Product{Name: "!!!"}))
}
