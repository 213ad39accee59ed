package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"gorm.io/gorm"
)

// ItemRow is an order line joined with its product or bundle.
type ItemRow struct {
	OrderItem
	ProductName *string
	ProductSlug *string
	ProductType *string
	BundleName  *string
	BundleSlug  *string
}

type ListFilter struct {
	Status Status
	Email  string
	Cursor *pagination.Cursor
	Limit  int
}

type Repository interface {
	// InsertIfAbsent skips the insert when the session id is already recorded.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, order *Order) (bool, error)
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID int64) ([]OrderItem, error)
	ListItemRows(ctx context.Context, db *gorm.DB, orderID int64) ([]ItemRow, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)
	// MarkCompleted flips the order to completed when its status is one of
	// from and reports whether this call made the change.
	MarkCompleted(ctx context.Context, db *gorm.DB, id int64, from []Status, at time.Time) (bool, error)
	// SetStatus never moves an order out of completed.
	SetStatus(ctx context.Context, db *gorm.DB, id int64, status Status, at time.Time) (bool, error)
}
