package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the storefront, in dependency order.
func Models() []any {
	return []any{
		&categorydomain.Category{},
		&productdomain.Product{},
		&bundledomain.Bundle{},
		&bundledomain.BundleProduct{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&downloaddomain.DownloadToken{},
		&paymentdomain.EventRecord{},
		&settingsdomain.Setting{},
		&auditdomain.AuditLog{},
		&newsletterdomain.Subscriber{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models on dialects without SQL
// migrations (sqlite for local runs, mysql).
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
