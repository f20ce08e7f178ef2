// Package database implements metadata.Store on SQLite through gorm.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"imagevault/internal/appinfo"
	"imagevault/pkg/logger"
)

// OwnerIndexName is the index created on images(user_id) when requested.
const OwnerIndexName = "idx_images_user_id"

type Options struct {
	Path string
	// OwnerIndex creates the owner index at migration time. Without it the
	// catalog lists by scanning.
	OwnerIndex bool
}

// Open connects to the SQLite file with WAL mode, runs migrations and loads
// the initial image totals into appinfo.
func Open(opts Options) (*gorm.DB, error) {
	if err := ensureDir(opts.Path); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}

	// WAL mode enables concurrent readers and a single writer without locking the entire file.
	// busy_timeout ensures the driver waits for the lock instead of failing immediately.
	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-20000",
		opts.Path,
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}
	if err := runMigrations(db, opts.OwnerIndex); err != nil {
		return nil, err
	}
	loadInitialStats(db)

	logger.LogInfo("Database initialized at %s", opts.Path)
	return db, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0750)
	}
	return nil
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("retrieve database handle: %w", err)
	}

	// One writer on a single file; more connections only contend for the lock.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	return nil
}

func runMigrations(db *gorm.DB, ownerIndex bool) error {
	if err := db.AutoMigrate(&ImageRow{}, &ImageTag{}); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag);",
	}
	if ownerIndex {
		indices = append(indices, "CREATE INDEX IF NOT EXISTS "+OwnerIndexName+" ON images(user_id, id);")
	}

	for _, idx := range indices {
		if err := db.Exec(idx).Error; err != nil {
			logger.LogWarn("Failed to create index: %v", err)
		}
	}
	return nil
}

func loadInitialStats(db *gorm.DB) {
	var count int64
	var totalSize int64

	// IFNULL covers the empty table, where SUM is NULL
	row := db.Model(&ImageRow{}).Select("count(*), IFNULL(SUM(file_size), 0)").Row()
	if err := row.Scan(&count, &totalSize); err != nil {
		logger.LogWarn("Failed to load initial stats: %v", err)
		return
	}

	appinfo.SetInitialStats(count, totalSize)
}
