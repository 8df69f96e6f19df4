package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/evshift/internal/models"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// ShiftStore is the gorm/sqlite shift repository
type ShiftStore struct {
	db *gorm.DB
}

// Open sets up the database connection and runs migrations
func Open(path string) (*ShiftStore, error) {
	dsn := path
	if path != MemoryPath {
		// Ensure the directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Quiet by default
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows one writer; a single connection also keeps an
	// in-memory database alive and shared across goroutines
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := &ShiftStore{db: db}
	if err := s.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// runMigrations creates/updates the database schema
func (s *ShiftStore) runMigrations() error {
	return s.db.AutoMigrate(
		&models.Shift{},
		&models.Technician{},
		&models.ShiftTechnician{},
	)
}

// Close closes the database connection
func (s *ShiftStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Describe names the backend for logs
func (s *ShiftStore) Describe() string {
	return "sqlite"
}
