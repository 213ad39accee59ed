package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderCompleted(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	event := NewOrderCompleted(42, "01HX", "a@b.com", 1598, "usd", []int64{7, 9}, at)

	assert.Equal(t, TypeOrderCompleted, event.Type)
	assert.Equal(t, "42", event.OrderID)
	assert.Equal(t, []string{"7", "9"}, event.ProductIDs)
	assert.Len(t, event.EventID, 26)
	assert.Equal(t, at, event.CompletedAt)
}

func TestMemoryPublisher(t *testing.T) {
	p := &MemoryPublisher{}
	require.NoError(t, p.Publish(context.Background(), "orders", "k1", "v1"))
	require.NoError(t, p.Publish(context.Background(), "orders", "k2", "v2"))

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "k1", msgs[0].Key)
	assert.Equal(t, "v2", msgs[1].Event)
}
