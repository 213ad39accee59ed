package domain

import "time"

type Subscriber struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(320);not null;uniqueIndex"`
	Source    string    `json:"source" gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (Subscriber) TableName() string { return "newsletter_subscribers" }
