package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/NgigiN/fintrack/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Database struct {
	db *gorm.DB
}

// Open connects to the store and migrates the schema.
func Open(driver, dsn string) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := NewDatabase(dialector)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection serializes units of work instead of
		// surfacing SQLITE_BUSY to callers.
		sqlDB, err := db.db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func NewDatabase(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&User{}, &Account{}, &Transaction{}, &Budget{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Database{db: db}, nil
}

// DB returns a session bound to ctx for single-statement reads.
func (d *Database) DB(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// UnitOfWork runs fn inside one store transaction. Returning an error (or panicking) rolls
// every write back; callers never commit or roll back themselves.
func (d *Database) UnitOfWork(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.Close()
}

// FindAccount loads an account scoped to its owner.
func FindAccount(tx *gorm.DB, ownerID, accountID string) (*Account, error) {
	var account Account
	err := tx.Where("id = ? AND user_id = ?", accountID, ownerID).First(&account).Error
	if err != nil {
		return nil, translate(err, "account "+accountID)
	}
	return &account, nil
}

func FindDefaultAccount(tx *gorm.DB, ownerID string) (*Account, error) {
	var account Account
	err := tx.Where("user_id = ? AND is_default = ?", ownerID, true).First(&account).Error
	if err != nil {
		return nil, translate(err, "default account of user "+ownerID)
	}
	return &account, nil
}

// FindTransaction loads a transaction scoped to its owner.
func FindTransaction(tx *gorm.DB, ownerID, transactionID string) (*Transaction, error) {
	var txn Transaction
	err := tx.Where("id = ? AND user_id = ?", transactionID, ownerID).First(&txn).Error
	if err != nil {
		return nil, translate(err, "transaction "+transactionID)
	}
	return &txn, nil
}

func FindBudget(tx *gorm.DB, ownerID string) (*Budget, error) {
	var budget Budget
	err := tx.Where("user_id = ?", ownerID).First(&budget).Error
	if err != nil {
		return nil, translate(err, "budget of user "+ownerID)
	}
	return &budget, nil
}

func FindUser(tx *gorm.DB, userID string) (*User, error) {
	var user User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err, "user "+userID)
	}
	return &user, nil
}

func translate(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
