package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent reports false when the address is already subscribed.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, subscriber *Subscriber) (bool, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Subscriber, error)
}
