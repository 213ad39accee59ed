package repository

import (
	"context"

	"github.com/smallbiznis/digistore/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, key string) (*domain.Setting, error) {
	var item domain.Setting
	err := db.WithContext(ctx).Raw(
		`SELECT setting_key, value, updated_at FROM settings WHERE setting_key = ? LIMIT 1`,
		key,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Key == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]domain.Setting, error) {
	var items []domain.Setting
	err := db.WithContext(ctx).Raw(
		`SELECT setting_key, value, updated_at FROM settings WHERE setting_key LIKE ? ORDER BY setting_key ASC`,
		prefix+"%",
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Setting, error) {
	var items []domain.Setting
	err := db.WithContext(ctx).Raw(
		`SELECT setting_key, value, updated_at FROM settings ORDER BY setting_key ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, setting *domain.Setting) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(setting).Error
}
