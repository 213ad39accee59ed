package repository

import (
	"context"

	"github.com/smallbiznis/digistore/internal/category/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const listSelect = `SELECT c.id, c.name, c.slug, c.description, c.parent_id, c.created_at, c.updated_at,
		p.name AS parent_name,
		(SELECT COUNT(1) FROM products pr WHERE pr.category_id = c.id) AS product_count
	 FROM categories c
	 LEFT JOIN categories p ON p.id = c.parent_id`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, name, slug, description, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		category.ParentID,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`UPDATE categories SET name = ?, slug = ?, description = ?, parent_id = ?, updated_at = ?
		 WHERE id = ?`,
		category.Name,
		category.Slug,
		category.Description,
		category.ParentID,
		category.UpdatedAt,
		category.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM categories WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, description, parent_id, created_at, updated_at
		 FROM categories WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, description, parent_id, created_at, updated_at
		 FROM categories WHERE slug = ?`,
		slug,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindRow(ctx context.Context, db *gorm.DB, id int64) (*domain.CategoryRow, error) {
	var row domain.CategoryRow
	err := db.WithContext(ctx).Raw(listSelect+` WHERE c.id = ?`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.CategoryRow, error) {
	var rows []domain.CategoryRow
	err := db.WithContext(ctx).Raw(listSelect + ` ORDER BY c.name ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListByParent(ctx context.Context, db *gorm.DB, parentID *int64) ([]domain.CategoryRow, error) {
	var rows []domain.CategoryRow
	var err error
	if parentID == nil {
		err = db.WithContext(ctx).Raw(listSelect + ` WHERE c.parent_id IS NULL ORDER BY c.name ASC`).Scan(&rows).Error
	} else {
		err = db.WithContext(ctx).Raw(listSelect+` WHERE c.parent_id = ? ORDER BY c.name ASC`, *parentID).Scan(&rows).Error
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountChildren(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM categories WHERE parent_id = ?`, id).Scan(&count).Error
	return count, err
}

func (r *repo) CountProducts(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM products WHERE category_id = ?`, id).Scan(&count).Error
	return count, err
}
