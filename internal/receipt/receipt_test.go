package receipt_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/internal/receipt"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func completed(t *testing.T, env *storetest.Env, price int64) *orderdomain.Order {
	t.Helper()
	kit := env.Product(t, "Agent Kit", price)
	id, err := snowflake.ParseString(kit.ID)
	require.NoError(t, err)
	productID := id.Int64()
	completion, err := env.Orders.CreateCompleted(context.Background(), orderdomain.CreateRequest{
		Email: "buyer@example.com",
		Items: []orderdomain.ItemInput{{ProductID: &productID, Name: kit.Name, Quantity: 1, Price: price}},
	})
	require.NoError(t, err)
	return completion.Order
}

func TestSendUsesBrandingAndLinks(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	name := "Pixel Forge"
	_, err := env.Settings.UpdateBranding(ctx, settingsdomain.BrandingUpdate{StoreName: &name})
	require.NoError(t, err)
	order := completed(t, env, 1598)

	require.NoError(t, env.Receipts.Send(ctx, order, receipt.SubjectPaid))

	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"buyer@example.com"}, sent[0].To)
	assert.Equal(t, receipt.SubjectPaid, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Pixel Forge")
	assert.Contains(t, sent[0].Body, order.OrderNumber)
	assert.Contains(t, sent[0].Body, "$15.98")
	assert.Contains(t, sent[0].Body, "Links expire in 48 hours and can be used up to 5 times each.")

	tokens, err := env.Issuer.ListByOrder(ctx, snowflake.ID(order.ID).String())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Contains(t, sent[0].Body, tokens[0].DownloadURL)
}

func TestSendRejectsPendingOrders(t *testing.T) {
	env := storetest.New(t)
	kit := env.Product(t, "Agent Kit", 500)
	id, err := snowflake.ParseString(kit.ID)
	require.NoError(t, err)
	productID := id.Int64()

	var pending *orderdomain.Order
	require.NoError(t, env.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = env.Orders.CreatePendingTx(context.Background(), tx, orderdomain.CreateRequest{
			Email:     "buyer@example.com",
			SessionID: "cs_pending",
			Items:     []orderdomain.ItemInput{{ProductID: &productID, Quantity: 1, Price: 500}},
		})
		return err
	}))

	err = env.Receipts.Send(context.Background(), pending, receipt.SubjectPaid)
	assert.ErrorIs(t, err, receipt.ErrOrderNotCompleted)
	err = env.Receipts.Resend(context.Background(), snowflake.ID(pending.ID).String())
	assert.ErrorIs(t, err, receipt.ErrOrderNotCompleted)
	assert.Empty(t, env.Mail.Sent())
}

func TestResend(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	order := completed(t, env, 0)

	require.NoError(t, env.Receipts.Resend(ctx, snowflake.ID(order.ID).String()))
	require.NoError(t, env.Receipts.Resend(ctx, snowflake.ID(order.ID).String()))
	assert.Len(t, env.Mail.Sent(), 2)

	assert.ErrorIs(t, env.Receipts.Resend(ctx, "nope"), orderdomain.ErrInvalidID)
	assert.ErrorIs(t, env.Receipts.Resend(ctx, "12345"), orderdomain.ErrNotFound)

	env.Mail.Err = errors.New("smtp down")
	assert.Error(t, env.Receipts.Resend(ctx, snowflake.ID(order.ID).String()))
}

func TestRenderPDF(t *testing.T) {
	env := storetest.New(t)
	order := completed(t, env, 2500)

	r, name, err := env.Receipts.RenderPDF(context.Background(), snowflake.ID(order.ID).String())
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+order.OrderNumber+".pdf", name)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, len(body) > 4 && string(body[:4]) == "%PDF")
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$15.98", receipt.FormatMoney(1598, "usd"))
	assert.Equal(t, "$0.00", receipt.FormatMoney(0, ""))
	assert.Equal(t, "€4.05", receipt.FormatMoney(405, "EUR"))
	assert.Equal(t, "£12.00", receipt.FormatMoney(1200, "gbp"))
	assert.Equal(t, "-$1.50", receipt.FormatMoney(-150, "usd"))
	assert.Equal(t, "99.00 JPY", receipt.FormatMoney(9900, "jpy"))
}
