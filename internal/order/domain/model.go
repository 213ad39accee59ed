package domain

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

type Order struct {
	ID              int64      `json:"id" gorm:"primaryKey"`
	OrderNumber     string     `json:"order_number" gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_order_number"`
	Email           string     `json:"email" gorm:"type:varchar(320);not null;index"`
	Status          Status     `json:"status" gorm:"type:varchar(16);not null;index"`
	Total           int64      `json:"total" gorm:"not null"`
	Currency        string     `json:"currency" gorm:"type:varchar(8);not null"`
	StripeSessionID *string    `json:"stripe_session_id,omitempty" gorm:"type:varchar(255);uniqueIndex:ux_orders_stripe_session_id"`
	CreatedAt       time.Time  `json:"created_at" gorm:"not null;index"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"not null"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one charged line. Exactly one of ProductID/BundleID is set and
// Price is the line total (unit price times quantity).
type OrderItem struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	OrderID   int64     `json:"order_id" gorm:"not null;index"`
	ProductID *int64    `json:"product_id,omitempty" gorm:"index"`
	BundleID  *int64    `json:"bundle_id,omitempty" gorm:"index"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	Price     int64     `json:"price" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }
