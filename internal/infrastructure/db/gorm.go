package db

import (
	"fmt"
	"time"

	"fastpay-ledger/internal/domain/account"
	"fastpay-ledger/internal/domain/loan"
	"fastpay-ledger/internal/domain/transaction"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// OpenGorm connects the row store. sqlite takes a file path (or ":memory:").
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case DriverMySQL, "":
		return OpenGormWithDialector(mysql.Open(dsn))
	case DriverSQLite:
		db, err := OpenGormWithDialector(sqlite.Open(dsn))
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection also keeps ":memory:" shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		TranslateError:       true,
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&account.Account{}, &transaction.Transaction{}, &loan.Loan{})
}
