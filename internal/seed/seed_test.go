package seed

import (
	"context"
	"testing"

	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoCatalogIsIdempotent(t *testing.T) {
	db := dbtest.Open(t,
		&categorydomain.Category{},
		&productdomain.Product{},
		&bundledomain.Bundle{},
		&bundledomain.BundleProduct{},
	)
	ctx := context.Background()

	seeded, err := EnsureDemoCatalog(ctx, db)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = EnsureDemoCatalog(ctx, db)
	require.NoError(t, err)
	assert.False(t, seeded)

	var products, members int64
	require.NoError(t, db.Model(&productdomain.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&bundledomain.BundleProduct{}).Count(&members).Error)
	assert.Equal(t, int64(len(demoProducts)), products)
	assert.Equal(t, int64(2), members)

	var bundle bundledomain.Bundle
	require.NoError(t, db.First(&bundle).Error)
	assert.Equal(t, int64(5440), bundle.Price)
}
