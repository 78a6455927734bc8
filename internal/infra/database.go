package infra

import (
	"fmt"

	"cashledger/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection for the configured driver, migrates the
// ledger tables and applies the idempotent SQL patches GORM cannot express.
// TranslateError is enabled so unique-key violations surface as
// gorm.ErrDuplicatedKey; the closing commit relies on it.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates the ledger tables and applies schema patches.
// Integration tests call it directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Register{},
		&model.Operator{},
		&model.CashMovement{},
		&model.Transaction{},
		&model.TransactionItem{},
		&model.Expense{},
		&model.CashClosing{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
// Partial indexes are a PostgreSQL feature; other dialects skip them.
func applySchemaPatches(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	patches := []string{
		// the closing commit and the lock-repair cron both scan unlocked invoices
		`CREATE INDEX IF NOT EXISTS idx_transactions_unlocked
		    ON transactions (tenant_id, seller_id, date)
		    WHERE is_locked = false`,
		// one closing per register-day even if ids were ever built differently
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_cash_closings_register_day
		    ON cash_closings (tenant_id, register_id, business_day)`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
