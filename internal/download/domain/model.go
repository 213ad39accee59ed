package domain

import "time"

type DownloadToken struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	OrderID       int64     `json:"order_id" gorm:"not null;uniqueIndex:ux_download_tokens_order_product,priority:1"`
	ProductID     int64     `json:"product_id" gorm:"not null;uniqueIndex:ux_download_tokens_order_product,priority:2"`
	Token         string    `json:"token" gorm:"type:varchar(64);not null;uniqueIndex:ux_download_tokens_token"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null"`
	DownloadCount int       `json:"download_count" gorm:"not null;default:0"`
	MaxDownloads  int       `json:"max_downloads" gorm:"not null;default:5"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

func (DownloadToken) TableName() string { return "download_tokens" }

func (t DownloadToken) Remaining() int {
	if t.DownloadCount >= t.MaxDownloads {
		return 0
	}
	return t.MaxDownloads - t.DownloadCount
}
