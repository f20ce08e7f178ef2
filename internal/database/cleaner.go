package database

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"

	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

/*
Maintenance worker

Metadata rows are small, so the file only grows through deletions leaving
free pages behind. SQLite reuses free pages for new rows, so the worker
leaves the file alone until more than half of it is free space, then
checkpoints the WAL and runs VACUUM.

The worker never deletes rows. A row without its object (or the reverse)
would break the catalog, and retention is not this worker's job.
*/

const bloatRatio = 0.50

// Maintainer periodically compacts the SQLite file.
type Maintainer struct {
	db       *gorm.DB
	path     string
	interval time.Duration
}

func NewMaintainer(db *gorm.DB, path string, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Maintainer{db: db, path: path, interval: interval}
}

// Run blocks until ctx is cancelled.
func (m *Maintainer) Run(ctx context.Context) {
	logger.LogInfo("Storage maintainer started. Interval: %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.checkAndVacuum(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndVacuum(ctx)
		}
	}
}

// checkAndVacuum returns true when a VACUUM ran.
func (m *Maintainer) checkAndVacuum(ctx context.Context) bool {
	db := m.db.WithContext(ctx)

	var pageCount, freePages, pageSize int64
	if err := db.Raw("PRAGMA page_count;").Scan(&pageCount).Error; err != nil {
		logger.LogError("Maintainer failed to read page_count: %v", err)
		return false
	}
	if err := db.Raw("PRAGMA freelist_count;").Scan(&freePages).Error; err != nil {
		logger.LogError("Maintainer failed to read freelist_count: %v", err)
		return false
	}
	if err := db.Raw("PRAGMA page_size;").Scan(&pageSize).Error; err != nil {
		logger.LogError("Maintainer failed to read page_size: %v", err)
		return false
	}

	if pageCount == 0 || float64(freePages) <= float64(pageCount)*bloatRatio {
		return false
	}

	physical := m.physicalSize()
	logger.LogInfo("Storage Analysis - Phys: %s | Free: %s",
		utils.FormatBytes(physical),
		utils.FormatBytes(freePages*pageSize))
	logger.LogWarn("DB is bloated (>50%% free pages). Starting VACUUM to reclaim space...")

	// Commit WAL into the main file before rebuilding it
	if res, err := checkpoint(db); err != nil {
		logger.LogError("WAL checkpoint failed: %v", err)
	} else if res.Busy != 0 {
		logger.LogWarn("WAL checkpoint incomplete: %d of %d frames checkpointed", res.Checkpointed, res.Log)
	}

	start := time.Now()
	if err := db.Exec("VACUUM;").Error; err != nil {
		logger.LogError("VACUUM failed: %v", err)
		return false
	}
	logger.LogInfo("VACUUM completed in %v. Disk space reclaimed.", time.Since(start))
	return true
}

type checkpointResult struct {
	Busy         int
	Log          int
	Checkpointed int
}

func checkpoint(db *gorm.DB) (checkpointResult, error) {
	var res checkpointResult
	err := db.Raw("PRAGMA wal_checkpoint(TRUNCATE);").Row().Scan(&res.Busy, &res.Log, &res.Checkpointed)
	return res, err
}

func (m *Maintainer) physicalSize() int64 {
	var size int64
	if fi, err := os.Stat(m.path); err == nil {
		size += fi.Size()
	}
	// The WAL file occupies disk too
	if fi, err := os.Stat(m.path + "-wal"); err == nil {
		size += fi.Size()
	}
	return size
}
