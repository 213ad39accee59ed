package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Persister interface {
	// Load returns the saved state, or an empty state when none exists.
	Load(ctx context.Context, cartID string) (State, error)
	Save(ctx context.Context, cartID string, state State) error
}

type RedisPersister struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPersister(client *redis.Client, prefix string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, cartID string) (State, error) {
	data, err := p.client.Get(ctx, p.prefix+cartID).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load cart: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode cart: %w", err)
	}
	return state, nil
}

func (p *RedisPersister) Save(ctx context.Context, cartID string, state State) error {
	if len(state.Items) == 0 && !state.IsOpen {
		return p.client.Del(ctx, p.prefix+cartID).Err()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := p.client.Set(ctx, p.prefix+cartID, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// MemoryPersister keeps carts in process. Used when Redis is not configured.
type MemoryPersister struct {
	mu    sync.Mutex
	carts map[string]State
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{carts: map[string]State{}}
}

func (p *MemoryPersister) Load(ctx context.Context, cartID string) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.carts[cartID].clone(), nil
}

func (p *MemoryPersister) Save(ctx context.Context, cartID string, state State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carts[cartID] = state.clone()
	return nil
}
