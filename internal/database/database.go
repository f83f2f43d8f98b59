package database

import (
	"fmt"

	"fintrack/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every model. Existing rows
// are preserved: the transaction log is the source of truth and must survive
// restarts.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Transaction{},
		&models.Deposit{},
		&models.PriceHistory{},
		&models.CurrentPrice{},
		&models.BackfillStatus{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
