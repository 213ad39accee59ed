package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stripe caps metadata values at 500 characters.
const metadataValueLimit = 500

const (
	metadataItemsKey      = "items"
	metadataItemsCountKey = "items_count"
)

// MetadataItem is the cart snapshot carried on the payment session so the
// webhook can rebuild order lines. Price is the unit price.
type MetadataItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

func MetadataItemsFromLines(lines []Line, formatID func(int64) string) []MetadataItem {
	items := make([]MetadataItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, MetadataItem{
			ID:       formatID(line.RefID),
			Type:     line.Type,
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
	}
	return items
}

// EncodeItemsMetadata stores the items JSON under "items", or splits it across
// "items_0".."items_n" with "items_count" when it does not fit one value.
func EncodeItemsMetadata(items []MetadataItem) (map[string]string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	encoded := string(raw)
	if len(encoded) <= metadataValueLimit {
		return map[string]string{metadataItemsKey: encoded}, nil
	}

	out := map[string]string{}
	count := 0
	for start := 0; start < len(encoded); start += metadataValueLimit {
		end := start + metadataValueLimit
		if end > len(encoded) {
			end = len(encoded)
		}
		out[fmt.Sprintf("items_%d", count)] = encoded[start:end]
		count++
	}
	out[metadataItemsCountKey] = strconv.Itoa(count)
	return out, nil
}

func DecodeItemsMetadata(metadata map[string]string) ([]MetadataItem, error) {
	encoded, ok := metadata[metadataItemsKey]
	if !ok {
		rawCount := strings.TrimSpace(metadata[metadataItemsCountKey])
		count, err := strconv.Atoi(rawCount)
		if err != nil || count <= 0 {
			return nil, ErrInvalidMetadata
		}
		var b strings.Builder
		for i := 0; i < count; i++ {
			chunk, ok := metadata[fmt.Sprintf("items_%d", i)]
			if !ok {
				return nil, ErrInvalidMetadata
			}
			b.WriteString(chunk)
		}
		encoded = b.String()
	}

	var items []MetadataItem
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return nil, ErrInvalidMetadata
	}
	if len(items) == 0 {
		return nil, ErrInvalidMetadata
	}
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || item.Quantity < 1 || item.Price < 0 {
			return nil, ErrInvalidMetadata
		}
		if item.Type != ItemTypeProduct && item.Type != ItemTypeBundle {
			return nil, ErrInvalidMetadata
		}
	}
	return items, nil
}
