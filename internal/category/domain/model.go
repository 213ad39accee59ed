package domain

import "time"

type Category struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Slug        string    `json:"slug" gorm:"type:varchar(191);not null;uniqueIndex:ux_categories_slug"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	ParentID    *int64    `json:"parent_id,omitempty" gorm:"index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

// CategoryRow is a category with the listing aggregates joined in.
type CategoryRow struct {
	ID           int64
	Name         string
	Slug         string
	Description  *string
	ParentID     *int64
	ParentName   *string
	ProductCount int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
