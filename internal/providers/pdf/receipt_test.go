package pdf

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	r, err := New().GenerateReceipt(context.Background(), ReceiptData{
		StoreName:   "AgenticVault",
		OrderNumber: "01HZX",
		Email:       "a@b.com",
		DatePaid:    "2026-05-04",
		Status:      "completed",
		Items:       []ReceiptItem{{Description: "Prompt Pack", Qty: 2, Amount: "$15.98"}},
		Total:       "$15.98",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}
