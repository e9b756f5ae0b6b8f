package database

import (
	"fmt"
	"log"

	"filecache-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the catalog database at path and runs migrations.
// glebarez/sqlite is a pure Go driver, so no CGO is needed.
func InitDB(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	DB = db
	log.Printf("Database %s connected and migrated", path)
	return nil
}

// Migrate creates or updates the catalog and user tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Entry{},
	)
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
