package domain

import "time"

type Bundle struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"type:text;not null"`
	Slug            string    `json:"slug" gorm:"type:varchar(191);not null;uniqueIndex:ux_bundles_slug"`
	Description     *string   `json:"description,omitempty" gorm:"type:text"`
	Price           int64     `json:"price" gorm:"not null;default:0"`
	DiscountPercent int       `json:"discount_percent" gorm:"not null;default:0"`
	IsActive        bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null"`
}

func (Bundle) TableName() string { return "bundles" }

// BundleProduct is one member of a bundle's ordered product set.
type BundleProduct struct {
	BundleID  int64 `json:"bundle_id" gorm:"primaryKey;autoIncrement:false"`
	ProductID int64 `json:"product_id" gorm:"primaryKey;autoIncrement:false;index"`
	Position  int   `json:"position" gorm:"not null;default:0"`
}

func (BundleProduct) TableName() string { return "bundle_products" }
