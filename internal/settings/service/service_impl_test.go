package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/digistore/internal/config"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	_, err := env.Settings.Get(ctx, "support.email")
	assert.ErrorIs(t, err, settingsdomain.ErrNotFound)

	first, err := env.Settings.Set(ctx, "support.email", "help@shop.test")
	require.NoError(t, err)
	assert.Equal(t, "help@shop.test", first.Value)

	env.Clock.Advance(time.Hour)
	_, err = env.Settings.Set(ctx, "support.email", "care@shop.test")
	require.NoError(t, err)

	got, err := env.Settings.Get(ctx, " support.email ")
	require.NoError(t, err)
	assert.Equal(t, "care@shop.test", got.Value)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))

	all, err := env.Settings.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSetValidation(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	_, err := env.Settings.Set(ctx, "bad key", "x")
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidKey)
	_, err = env.Settings.Set(ctx, ".hidden", "x")
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidKey)
	_, err = env.Settings.Set(ctx, "notes", strings.Repeat("a", 4097))
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidValue)
	_, err = env.Settings.Get(ctx, "")
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidKey)
}

func TestBrandingOverlaysDefaults(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)
	defaults := config.DefaultStorefrontConfig().Branding

	branding, err := env.Settings.Branding(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, branding)

	name := "  Pixel Forge  "
	tagline := "Tools for makers"
	updated, err := env.Settings.UpdateBranding(ctx, settingsdomain.BrandingUpdate{StoreName: &name, StoreTagline: &tagline})
	require.NoError(t, err)
	assert.Equal(t, "Pixel Forge", updated.StoreName)
	assert.Equal(t, tagline, updated.StoreTagline)
	assert.Equal(t, defaults.HeroHeadline, updated.HeroHeadline)

	stored, err := env.Settings.Get(ctx, "branding.storeName")
	require.NoError(t, err)
	assert.Equal(t, "Pixel Forge", stored.Value)

	// An empty stored value falls back to the default.
	blank := ""
	updated, err = env.Settings.UpdateBranding(ctx, settingsdomain.BrandingUpdate{StoreName: &blank})
	require.NoError(t, err)
	assert.Equal(t, defaults.StoreName, updated.StoreName)
	assert.Equal(t, tagline, updated.StoreTagline)

	// Unknown branding keys are ignored by the overlay.
	_, err = env.Settings.Set(ctx, "branding.footer", "ignored")
	require.NoError(t, err)
	branding, err = env.Settings.Branding(ctx)
	require.NoError(t, err)
	assert.Equal(t, tagline, branding.StoreTagline)
}
