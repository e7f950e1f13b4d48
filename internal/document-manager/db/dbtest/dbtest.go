// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"document-generator-service/internal/document-manager/db"
)

// Open returns a migrated database in a temp dir, closed when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dsn := "file:" + path + "?_busy_timeout=5000&_txlock=immediate"

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database '%s': %v", path, err)
	}
	if err := gormDB.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database '%s': %v", path, err)
	}
	t.Cleanup(func() {
		sqlDB, err := gormDB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				t.Logf("Warning: could not close test DB: %v", err)
			}
		}
	})
	return gormDB
}

// CreateDocument inserts a text document with the given name.
func CreateDocument(t *testing.T, gormDB *gorm.DB, name string) db.Document {
	t.Helper()
	doc := db.Document{Name: name, Plate: "ABC123", Entity: 4, Format: db.FormatText}
	if err := gormDB.Create(&doc).Error; err != nil {
		t.Fatalf("Failed to create document %q: %v", name, err)
	}
	return doc
}

// CreateSteps inserts sequence steps for documentID; days[i] is the delay of order i+1.
func CreateSteps(t *testing.T, gormDB *gorm.DB, documentID uint, days ...int) {
	t.Helper()
	for i, d := range days {
		step := db.SequenceStep{DocumentID: documentID, Order: i + 1, DaysSincePrevious: d}
		if err := gormDB.Create(&step).Error; err != nil {
			t.Fatalf("Failed to create step %d: %v", i+1, err)
		}
	}
}
