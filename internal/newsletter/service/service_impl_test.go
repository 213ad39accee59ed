package service_test

import (
	"context"
	"errors"
	"testing"

	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRecordsOnce(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	name := "Pixel Forge"
	_, err := env.Settings.UpdateBranding(ctx, settingsdomain.BrandingUpdate{StoreName: &name})
	require.NoError(t, err)

	first, err := env.Newsletter.Subscribe(ctx, newsletterdomain.SubscribeRequest{Email: " Reader@Example.com "})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadySubscribed)

	again, err := env.Newsletter.Subscribe(ctx, newsletterdomain.SubscribeRequest{Email: "reader@example.com", Source: "cta"})
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.True(t, again.AlreadySubscribed)

	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM newsletter_subscribers WHERE email = ? AND source = ?", "reader@example.com", "footer"))
	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"reader@example.com"}, sent[0].To)
	assert.Equal(t, "Welcome to Pixel Forge", sent[0].Subject)
}

func TestSubscribeValidation(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	_, err := env.Newsletter.Subscribe(ctx, newsletterdomain.SubscribeRequest{Email: "  "})
	assert.ErrorIs(t, err, newsletterdomain.ErrEmailRequired)
	_, err = env.Newsletter.Subscribe(ctx, newsletterdomain.SubscribeRequest{Email: "not an email"})
	assert.ErrorIs(t, err, newsletterdomain.ErrInvalidEmail)
	_, err = env.Newsletter.Subscribe(ctx, newsletterdomain.SubscribeRequest{Email: "Reader <reader@example.com>"})
	assert.ErrorIs(t, err, newsletterdomain.ErrInvalidEmail)
	assert.Equal(t, int64(0), env.Count(t, "SELECT COUNT(1) FROM newsletter_subscribers"))
}

func TestSubscribeKeepsRowWhenMailFails(t *testing.T) {
	env := storetest.New(t)
	env.Mail.Err = errors.New("smtp down")

	resp, err := env.Newsletter.Subscribe(context.Background(), newsletterdomain.SubscribeRequest{Email: "reader@example.com"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(1) FROM newsletter_subscribers"))
}
