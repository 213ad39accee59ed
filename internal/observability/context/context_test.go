package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestScopedValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithClientIP(ctx, "10.0.0.1")
	ctx = WithActor(ctx, "support", "alice")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
	role, name := ActorFromContext(ctx)
	assert.Equal(t, "support", role)
	assert.Equal(t, "alice", name)
}

func TestEmptyContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	role, name := ActorFromContext(context.Background())
	assert.Empty(t, role)
	assert.Empty(t, name)
}
