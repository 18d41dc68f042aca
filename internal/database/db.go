// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DB struct {
	*gorm.DB
	driver string
}

// Options selects and addresses the backing database.
type Options struct {
	Driver     string // "postgres" or "sqlite"
	Host       string
	User       string
	Password   string
	Name       string
	Port       int
	SQLitePath string
}

func NewDB(opts Options) (*DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			opts.Host, opts.User, opts.Password, opts.Name, opts.Port)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(opts.SQLitePath + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	if opts.Driver == "sqlite" {
		// One connection keeps in-memory databases alive and serialises writers.
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &DB{DB: gormDB, driver: opts.Driver}, nil
}

// Migrate creates or updates every table. The embedding table needs the
// pgvector extension and is skipped on sqlite.
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(
		&models.Character{},
		&models.Prefix{},
		&models.Proxy{},
		&models.ChannelPolicy{},
		&models.Relay{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if !db.SupportsVectors() {
		return nil
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.AutoMigrate(&models.CharacterEmbedding{}); err != nil {
		return fmt.Errorf("migrate embeddings: %w", err)
	}
	return nil
}

// SupportsVectors reports whether the embedding table is available.
func (db *DB) SupportsVectors() bool {
	return db.driver == "postgres"
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, apperr.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (db *DB) ctx(ctx context.Context) *gorm.DB {
	return db.WithContext(ctx)
}
