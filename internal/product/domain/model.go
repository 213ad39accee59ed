package domain

import (
	"strings"
	"time"
)

const TypeTemplate = "template"

type Product struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"type:text;not null"`
	Slug           string    `json:"slug" gorm:"type:varchar(191);not null;uniqueIndex:ux_products_slug"`
	Description    *string   `json:"description,omitempty" gorm:"type:text"`
	CategoryID     int64     `json:"category_id" gorm:"not null;index"`
	Type           string    `json:"type" gorm:"type:varchar(64);not null;index"`
	Price          int64     `json:"price" gorm:"not null;default:0"`
	PreviewImageID *string   `json:"preview_image_id,omitempty" gorm:"type:text"`
	FileID         *string   `json:"file_id,omitempty" gorm:"type:text"`
	FileName       *string   `json:"file_name,omitempty" gorm:"type:text"`
	DeliveryURL    *string   `json:"delivery_url,omitempty" gorm:"type:text"`
	IsActive       bool      `json:"is_active" gorm:"not null;default:true"`
	IsFeatured     bool      `json:"is_featured" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Deliverable reports whether the product has a stored asset or an external link.
func (p Product) Deliverable() bool {
	return nonEmpty(p.FileID) || nonEmpty(p.DeliveryURL)
}

func nonEmpty(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}
