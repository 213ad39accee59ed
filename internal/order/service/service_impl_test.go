package service_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func productID(t *testing.T, id string) *int64 {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	v := parsed.Int64()
	return &v
}

func TestCreateCompletedIssuesOneTokenPerProduct(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	a := env.Product(t, "Prompt Pack", 0)
	b := env.Product(t, "Workflow Pack", 0)
	bundle := env.Bundle(t, "Starter", 0, a, b)

	completion, err := env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{
		Email: " Free@Example.com ",
		Items: []orderdomain.ItemInput{
			{ProductID: productID(t, a.ID), Name: a.Name, Quantity: 1},
			{BundleID: productID(t, bundle.ID), Name: bundle.Name, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, completion.Completed)
	assert.Equal(t, orderdomain.StatusCompleted, completion.Order.Status)
	assert.Equal(t, "free@example.com", completion.Order.Email)
	assert.Equal(t, "usd", completion.Order.Currency)
	assert.Nil(t, completion.Order.StripeSessionID)
	assert.Len(t, completion.Tokens, 2)

	assert.Equal(t, int64(2), env.Count(t, "SELECT COUNT(1) FROM download_tokens WHERE order_id = ?", completion.Order.ID))
}

func TestCreateCompletedValidatesInput(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	a := env.Product(t, "Prompt Pack", 0)

	_, err := env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{Email: "nope", Items: []orderdomain.ItemInput{{ProductID: productID(t, a.ID), Quantity: 1}}})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidEmail)

	_, err = env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{Email: "a@b.co"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidItems)

	_, err = env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{Email: "a@b.co", Items: []orderdomain.ItemInput{{Quantity: 1}}})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidItems)

	_, err = env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{Email: "a@b.co", Items: []orderdomain.ItemInput{{ProductID: productID(t, a.ID), Quantity: 0}}})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidItems)

	assert.Equal(t, int64(0), env.Count(t, "SELECT COUNT(1) FROM orders"))
}

func createPending(t *testing.T, env *storetest.Env, sessionID string, price int64) *orderdomain.Order {
	t.Helper()
	kit := env.Product(t, "Kit "+sessionID, price)
	var order *orderdomain.Order
	err := env.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = env.Orders.CreatePendingTx(context.Background(), tx, orderdomain.CreateRequest{
			Email:     "buyer@example.com",
			SessionID: sessionID,
			Items:     []orderdomain.ItemInput{{ProductID: productID(t, kit.ID), Name: kit.Name, Quantity: 1, Price: price}},
		})
		return err
	})
	require.NoError(t, err)
	return order
}

func TestCreatePendingIsIdempotentPerSession(t *testing.T) {
	env := storetest.New(t)
	first := createPending(t, env, "cs_1", 500)

	var again *orderdomain.Order
	err := env.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		again, err = env.Orders.CreatePendingTx(context.Background(), tx, orderdomain.CreateRequest{
			Email:     "other@example.com",
			SessionID: "cs_1",
			Items:     []orderdomain.ItemInput{{ProductID: &first.ID, Quantity: 1, Price: 1}},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "buyer@example.com", again.Email)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM orders"))
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM order_items"))
}

func TestCompleteOrderConcurrently(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	order := createPending(t, env, "cs_race", 799)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			completion, err := env.Orders.CompleteOrder(ctx, "cs_race")
			if err != nil {
				t.Errorf("complete: %v", err)
				return
			}
			if completion.Completed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	current, err := env.Orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, current.Status)
	require.NotNil(t, current.CompletedAt)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM download_tokens WHERE order_id = ?", order.ID))
}

func TestCompleteOrderUnknownSession(t *testing.T) {
	env := storetest.New(t)
	_, err := env.Orders.CompleteOrder(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)

	_, err = env.Orders.CompleteOrder(context.Background(), " ")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidSession)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	order := createPending(t, env, "cs_admin", 1200)
	id := snowflake.ID(order.ID).String()

	resp, err := env.Orders.UpdateStatus(ctx, id, "FAILED")
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)

	_, err = env.Orders.UpdateStatus(ctx, id, "refunded")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidStatus)

	resp, err = env.Orders.UpdateStatus(ctx, id, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM download_tokens WHERE order_id = ?", order.ID))

	_, err = env.Orders.UpdateStatus(ctx, id, "pending")
	assert.ErrorIs(t, err, orderdomain.ErrStatusTransition)

	resp, err = env.Orders.UpdateStatus(ctx, id, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)

	_, err = env.Orders.UpdateStatus(ctx, "12345", "failed")
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
	_, err = env.Orders.UpdateStatus(ctx, "abc", "failed")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidID)
}

func TestListAllPaginates(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	for i := 0; i < 5; i++ {
		createPending(t, env, "cs_page_"+strconv.Itoa(i), 100)
		env.Clock.Advance(time.Minute)
	}

	first, err := env.Orders.ListAll(ctx, orderdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)
	assert.True(t, first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt))

	second, err := env.Orders.ListAll(ctx, orderdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.True(t, first.Orders[1].CreatedAt.After(second.Orders[0].CreatedAt))

	filtered, err := env.Orders.ListAll(ctx, orderdomain.ListRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Empty(t, filtered.Orders)

	_, err = env.Orders.ListAll(ctx, orderdomain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidStatus)
}

func TestSessionCompletionLeavesFailedOrders(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	order := createPending(t, env, "cs_failed", 900)
	id := snowflake.ID(order.ID).String()
	_, err := env.Orders.UpdateStatus(ctx, id, "failed")
	require.NoError(t, err)

	completion, err := env.Orders.CompleteOrder(ctx, "cs_failed")
	require.NoError(t, err)
	assert.False(t, completion.Completed)
	assert.Equal(t, orderdomain.StatusFailed, completion.Order.Status)
	assert.Equal(t, int64(0), env.Count(t, "SELECT COUNT(1) FROM download_tokens WHERE order_id = ?", order.ID))

	// Only the admin override moves a failed order to completed.
	resp, err := env.Orders.UpdateStatus(ctx, id, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM download_tokens WHERE order_id = ?", order.ID))
}

func TestListByEmailReturnsCompletedOnly(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	createPending(t, env, "cs_open", 500)
	failed := createPending(t, env, "cs_declined", 700)
	_, err := env.Orders.UpdateStatus(ctx, snowflake.ID(failed.ID).String(), "failed")
	require.NoError(t, err)

	kit := env.Product(t, "Free Kit", 0)
	done, err := env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{
		Email: "Buyer@Example.com",
		Items: []orderdomain.ItemInput{{ProductID: productID(t, kit.ID), Name: kit.Name, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = env.Orders.CreateCompleted(ctx, orderdomain.CreateRequest{
		Email: "someone@else.com",
		Items: []orderdomain.ItemInput{{ProductID: productID(t, kit.ID), Name: kit.Name, Quantity: 1}},
	})
	require.NoError(t, err)

	history, err := env.Orders.ListByEmail(ctx, " buyer@example.com ")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, done.Order.OrderNumber, history[0].OrderNumber)
	assert.Equal(t, "completed", history[0].Status)

	none, err := env.Orders.ListByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = env.Orders.ListByEmail(ctx, "  ")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidEmail)
}
