// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/njcabinets/sales-backend/internal/config"
	"github.com/njcabinets/sales-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// Duplicate-key errors must surface as gorm.ErrDuplicatedKey so the
		// order converter's idempotent path can detect the unique constraint
		// on orders.proposal_id.
		TranslateError: true,
	}

	switch cfg.LogLevel {
	case "silent":
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	case "info":
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	default:
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.UserGroup{},
		&models.User{},
		&models.Customer{},
		&models.Manufacturer{},
		&models.CatalogItem{},
		&models.Proposal{},
		&models.Order{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// One order per proposal; the converter's idempotency depends on the
		// store rejecting a second insert, not on the application winning a
		// race.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_proposal ON orders(proposal_id)",

		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email)",

		"CREATE INDEX IF NOT EXISTS idx_catalog_items_manufacturer_code ON catalog_items(manufacturer_id, code)",

		"CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_customer ON proposals(customer_id)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_locked ON proposals(locked_pricing, status)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_updated_at ON proposals(updated_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_owner_group ON orders(owner_group_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_by_user ON orders(created_by_user_id)",

		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	var adminGroup models.UserGroup
	err := db.Where("group_type = ?", models.UserGroupTypeAdmin).First(&adminGroup).Error
	if err != nil {
		adminGroup = models.UserGroup{
			Name:      "Administrators",
			GroupType: models.UserGroupTypeAdmin,
		}
		if err := db.Create(&adminGroup).Error; err != nil {
			return fmt.Errorf("failed to create admin group: %w", err)
		}
	}

	var adminCount int64
	db.Model(&models.User{}).Where("group_id = ?", adminGroup.ID).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Name:    "System Administrator",
			Email:   "admin@njcabinets.com",
			GroupID: &adminGroup.ID,
			Enabled: true,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Proposals predating the creator column are attributed to the first
	// admin so every proposal has an accountable owner.
	if err := backfillProposalCreators(db, &adminGroup); err != nil {
		return err
	}

	log.Println("Initial data seeding completed")
	return nil
}

func backfillProposalCreators(db *gorm.DB, adminGroup *models.UserGroup) error {
	var admin models.User
	if err := db.Where("group_id = ?", adminGroup.ID).First(&admin).Error; err != nil {
		return nil
	}

	res := db.Model(&models.Proposal{}).
		Where("created_by_user_id IS NULL").
		Update("created_by_user_id", admin.ID)
	if res.Error != nil {
		return fmt.Errorf("failed to backfill proposal creators: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Backfilled creator on %d legacy proposal(s)", res.RowsAffected)
	}
	return nil
}
