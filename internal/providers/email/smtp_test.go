package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("shop@test", []string{"a@b.com", "c@d.com"}, "Your Downloads are Ready!", "<p>hi</p>"))

	assert.True(t, strings.HasPrefix(msg, "From: shop@test\r\n"))
	assert.Contains(t, msg, "To: a@b.com, c@d.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>"))
}

func TestSMTPSendRequiresRecipient(t *testing.T) {
	err := NewSMTP(Config{Host: "localhost", Port: 25}).Send(context.Background(), nil, "s", "b")
	assert.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	p := &MemoryProvider{}
	require.NoError(t, p.Send(context.Background(), []string{"a@b.com"}, "subject", "body"))
	require.Len(t, p.Sent(), 1)

	p.Err = errors.New("smtp down")
	assert.Error(t, p.Send(context.Background(), []string{"a@b.com"}, "subject", "body"))
	assert.Len(t, p.Sent(), 1)
}
