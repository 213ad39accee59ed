package service_test

import (
	"context"
	"testing"

	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryTree(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	parent, err := env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "AI Agents"})
	require.NoError(t, err)
	assert.Equal(t, "ai-agents", parent.Slug)
	assert.Nil(t, parent.ParentID)

	child, err := env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "Coding Agents", ParentID: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	require.NotNil(t, child.ParentName)
	assert.Equal(t, "AI Agents", *child.ParentName)

	top, err := env.Categories.TopLevel(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, parent.ID, top[0].ID)

	children, err := env.Categories.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	bySlug, err := env.Categories.GetBySlug(ctx, "coding-agents")
	require.NoError(t, err)
	assert.Equal(t, child.ID, bySlug.ID)

	_, err = env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "Orphan", ParentID: ptr("1234")})
	assert.ErrorIs(t, err, categorydomain.ErrParentNotFound)
	_, err = env.Categories.Update(ctx, categorydomain.UpdateRequest{ID: parent.ID, ParentID: &parent.ID})
	assert.ErrorIs(t, err, categorydomain.ErrInvalidParent)
}

func TestCategorySlugTaken(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	_, err := env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "Prompts"})
	require.NoError(t, err)
	_, err = env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "Other", Slug: "Prompts"})
	assert.ErrorIs(t, err, categorydomain.ErrSlugTaken)

	_, err = env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, categorydomain.ErrInvalidName)
}

func TestCategoryDeleteGuards(t *testing.T) {
	ctx := context.Background()
	env := storetest.New(t)

	parent, err := env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "Workflows"})
	require.NoError(t, err)
	child, err := env.Categories.Create(ctx, categorydomain.CreateRequest{Name: "n8n", ParentID: &parent.ID})
	require.NoError(t, err)
	product, err := env.Products.Create(ctx, productdomain.CreateRequest{Name: "Lead Router", Type: "workflow", Price: 900, CategoryID: &child.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, env.Categories.Delete(ctx, parent.ID), categorydomain.ErrHasSubcategories)
	assert.ErrorIs(t, env.Categories.Delete(ctx, child.ID), categorydomain.ErrHasProducts)

	counted, err := env.Categories.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counted.ProductCount)

	require.NoError(t, env.Products.Delete(ctx, product.ID))
	require.NoError(t, env.Categories.Delete(ctx, child.ID))
	require.NoError(t, env.Categories.Delete(ctx, parent.ID))

	_, err = env.Categories.Get(ctx, parent.ID)
	assert.ErrorIs(t, err, categorydomain.ErrNotFound)
	assert.ErrorIs(t, env.Categories.Delete(ctx, "oops"), categorydomain.ErrInvalidID)
}

func ptr[T any](v T) *T { return &v }
