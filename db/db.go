package db

import (
	"fmt"

	"github.com/ExcursionClub/ExCSystem/config"
	"github.com/ExcursionClub/ExCSystem/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB(cfg config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.Certification{},
		&models.Department{},
		&models.Member{},
		&models.GearType{},
		&models.CustomDataField{},
		&models.Gear{},
		&models.Transaction{},
		&models.RFIDCheck{},
	); err != nil {
		return err
	}

	// Postgres-only indexes; sqlite (tests) gets by on the plain ones.
	if gdb.Dialector.Name() != "postgres" {
		return nil
	}

	// Sweep query: checked-out gear by due date.
	if err := gdb.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_due_checked_out
	  ON %s (due_date)
	  WHERE status = 1 AND due_date IS NOT NULL;
	`, models.GearTable, models.GearTable)).Error; err != nil {
		return err
	}

	// History reads: a gear's ledger in order.
	return gdb.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_gear_ts
	  ON %s (gear_id, timestamp);
	`, models.TransactionTable, models.TransactionTable)).Error
}
