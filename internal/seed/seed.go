package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"gorm.io/gorm"
)

type demoProduct struct {
	name        string
	category    string
	kind        string
	price       int64
	featured    bool
	deliveryURL string
}

var demoCategories = []struct {
	name   string
	parent string
}{
	{name: "AI Agents"},
	{name: "Prompt Packs"},
	{name: "Automation Workflows"},
	{name: "Coding Agents", parent: "AI Agents"},
}

var demoProducts = []demoProduct{
	{name: "Research Agent Starter", category: "Coding Agents", kind: "template", price: 2900, featured: true, deliveryURL: "https://example.com/assets/research-agent.zip"},
	{name: "Support Triage Agent", category: "AI Agents", kind: "template", price: 3900, featured: true, deliveryURL: "https://example.com/assets/support-triage.zip"},
	{name: "Product Copy Prompt Pack", category: "Prompt Packs", kind: "prompt-pack", price: 1200, deliveryURL: "https://example.com/assets/product-copy.pdf"},
	{name: "Lead Enrichment Workflow", category: "Automation Workflows", kind: "workflow", price: 1900, deliveryURL: "https://example.com/assets/lead-enrichment.json"},
	{name: "Prompt Engineering Cheatsheet", category: "Prompt Packs", kind: "guide", price: 0, featured: true, deliveryURL: "https://example.com/assets/cheatsheet.pdf"},
}

const (
	demoBundleName     = "Agent Builder Bundle"
	demoBundleDiscount = 20
)

// EnsureDemoCatalog fills an empty catalog with sample categories, products
// and a bundle. It reports whether anything was written.
func EnsureDemoCatalog(ctx context.Context, db *gorm.DB) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&productdomain.Product{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return false, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		categoryIDs := map[string]int64{}
		for _, c := range demoCategories {
			row := categorydomain.Category{
				ID:        node.Generate().Int64(),
				Name:      c.name,
				Slug:      slug.Make(c.name),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if c.parent != "" {
				parentID := categoryIDs[c.parent]
				row.ParentID = &parentID
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			categoryIDs[c.name] = row.ID
		}

		var members []int64
		var original int64
		for _, p := range demoProducts {
			categoryID := categoryIDs[p.category]
			deliveryURL := p.deliveryURL
			row := productdomain.Product{
				ID:          node.Generate().Int64(),
				Name:        p.name,
				Slug:        slug.Make(p.name),
				CategoryID:  categoryID,
				Type:        p.kind,
				Price:       p.price,
				DeliveryURL: &deliveryURL,
				IsActive:    true,
				IsFeatured:  p.featured,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if p.kind == "template" {
				members = append(members, row.ID)
				original += row.Price
			}
		}

		bundle := bundledomain.Bundle{
			ID:              node.Generate().Int64(),
			Name:            demoBundleName,
			Slug:            slug.Make(demoBundleName),
			Price:           original * (100 - demoBundleDiscount) / 100,
			DiscountPercent: demoBundleDiscount,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(&bundle).Error; err != nil {
			return err
		}
		for i, productID := range members {
			link := bundledomain.BundleProduct{BundleID: bundle.ID, ProductID: productID, Position: i}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
