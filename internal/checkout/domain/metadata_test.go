package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsMetadataSingleValue(t *testing.T) {
	items := []MetadataItem{{ID: "101", Type: ItemTypeProduct, Price: 799, Quantity: 2}}

	metadata, err := EncodeItemsMetadata(items)
	require.NoError(t, err)
	assert.Contains(t, metadata, "items")
	assert.NotContains(t, metadata, "items_count")

	decoded, err := DecodeItemsMetadata(metadata)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestItemsMetadataChunked(t *testing.T) {
	var items []MetadataItem
	for i := 0; i < 40; i++ {
		items = append(items, MetadataItem{ID: fmt.Sprintf("17000000000000%05d", i), Type: ItemTypeBundle, Price: 4900, Quantity: 1})
	}

	metadata, err := EncodeItemsMetadata(items)
	require.NoError(t, err)
	require.NotContains(t, metadata, "items")
	require.Contains(t, metadata, "items_count")
	for key, value := range metadata {
		assert.LessOrEqual(t, len(value), 500, key)
	}

	decoded, err := DecodeItemsMetadata(metadata)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestDecodeItemsMetadataRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]string{
		"missing":        {},
		"not json":       {"items": "{"},
		"empty list":     {"items": "[]"},
		"zero quantity":  {"items": `[{"id":"1","type":"product","price":1,"quantity":0}]`},
		"unknown type":   {"items": `[{"id":"1","type":"gift","price":1,"quantity":1}]`},
		"missing chunk":  {"items_count": "2", "items_0": "[]"},
		"negative price": {"items": `[{"id":"1","type":"product","price":-1,"quantity":1}]`},
	}
	for name, metadata := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeItemsMetadata(metadata)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}
