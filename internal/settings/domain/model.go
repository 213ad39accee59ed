package domain

import "time"

type Setting struct {
	Key       string    `json:"key" gorm:"column:setting_key;type:varchar(191);primaryKey"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }
