package events

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
)

const TypeOrderCompleted = "order.completed"

// Publisher ships domain events to the broker. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

type OrderCompleted struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Email       string    `json:"email"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	ProductIDs  []string  `json:"product_ids"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewOrderCompleted(orderID int64, orderNumber, email string, total int64, currency string, productIDs []int64, completedAt time.Time) OrderCompleted {
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, snowflake.ID(id).String())
	}
	return OrderCompleted{
		EventID:     ulid.Make().String(),
		Type:        TypeOrderCompleted,
		OrderID:     snowflake.ID(orderID).String(),
		OrderNumber: orderNumber,
		Email:       email,
		Total:       total,
		Currency:    currency,
		ProductIDs:  ids,
		CompletedAt: completedAt,
	}
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return nil
}

type Message struct {
	Topic string
	Key   string
	Event any
}

// MemoryPublisher records published events in order.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func (p *MemoryPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
