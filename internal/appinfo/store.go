// Package appinfo holds process-wide runtime counters reported by the
// service info route.
package appinfo

import (
	"sync/atomic"
	"time"
)

var (
	startedAt atomic.Int64
	seeded    atomic.Bool

	TotalImagesCount atomic.Int64
	TotalImagesSize  atomic.Int64
	UploadsTotal     atomic.Int64
	DeletesTotal     atomic.Int64
)

func init() {
	startedAt.Store(time.Now().Unix())
}

// AddImage: called after an upload committed both the object and its record
func AddImage(size int64) {
	TotalImagesCount.Add(1)
	TotalImagesSize.Add(size)
	UploadsTotal.Add(1)
}

// RemoveImage: called after an image has been deleted. Unseeded totals only
// cover images uploaded since start, so they never go below zero.
func RemoveImage(size int64) {
	subFloor(&TotalImagesCount, 1)
	subFloor(&TotalImagesSize, size)
	DeletesTotal.Add(1)
}

func subFloor(v *atomic.Int64, d int64) {
	for {
		cur := v.Load()
		next := cur - d
		if next < 0 {
			next = 0
		}
		if v.CompareAndSwap(cur, next) {
			return
		}
	}
}

// SetInitialStats stores the totals read from the metadata store at startup.
// Stores that cannot count cheaply (DynamoDB) never call it.
func SetInitialStats(count, size int64) {
	seeded.Store(true)
	TotalImagesCount.Store(count)
	TotalImagesSize.Store(size)
}

type Snapshot struct {
	Images     int64  `json:"images"`
	TotalBytes int64  `json:"total_bytes"`
	Uploads    int64  `json:"uploads"`
	Deletes    int64  `json:"deletes"`
	Uptime     string `json:"uptime"`

	// SinceStart: Images and TotalBytes count only this process's uploads
	SinceStart bool `json:"counts_since_start"`
}

func Current() Snapshot {
	up := time.Since(time.Unix(startedAt.Load(), 0)).Truncate(time.Second)
	return Snapshot{
		Images:     TotalImagesCount.Load(),
		TotalBytes: TotalImagesSize.Load(),
		Uploads:    UploadsTotal.Load(),
		Deletes:    DeletesTotal.Load(),
		Uptime:     up.String(),
		SinceStart: !seeded.Load(),
	}
}
