// Package cleanup periodically evicts finished jobs from memory and removes
// scratch directories left behind by crashed or abandoned runs.
package cleanup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JobSweeper is the in-memory job store as seen by the scheduler
type JobSweeper interface {
	Sweep(now time.Time, maxAge time.Duration) int
	IsActive(id string) bool
}

// Scheduler handles periodic job eviction and scratch cleanup
type Scheduler struct {
	jobs       JobSweeper
	scratchDir string
	interval   time.Duration
	maxAge     time.Duration
	now        func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(jobs JobSweeper, scratchDir string, interval, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		jobs:       jobs,
		scratchDir: scratchDir,
		interval:   interval,
		maxAge:     maxAge,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval until Stop
func (s *Scheduler) Start() {
	slog.Info("running initial cleanup")
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				return
			}
		}
	}()

	slog.Info("cleanup scheduler started",
		slog.Duration("interval", s.interval),
		slog.Duration("max_age", s.maxAge))
}

// Stop stops the scheduler; safe to call more than once
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		slog.Info("cleanup scheduler stopped")
	})
}

// RunOnce performs a single cleanup pass
func (s *Scheduler) RunOnce() {
	now := s.now()
	if n := s.jobs.Sweep(now, s.maxAge); n > 0 {
		slog.Info("evicted finished jobs", slog.Int("count", n))
	}
	s.cleanScratch(now)
}

// cleanScratch removes per-job scratch dirs older than maxAge whose job is
// no longer running
func (s *Scheduler) cleanScratch(now time.Time) {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read scratch dir", slog.String("dir", s.scratchDir), slog.Any("error", err))
		}
		return
	}

	var deletedCount int
	var deletedSize int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge || s.jobs.IsActive(entry.Name()) {
			continue
		}

		path := filepath.Join(s.scratchDir, entry.Name())
		size := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("remove stale scratch", slog.String("path", path), slog.Any("error", err))
			continue
		}
		deletedCount++
		deletedSize += size
		slog.Debug("removed stale scratch",
			slog.String("path", path),
			slog.Duration("age", age.Round(time.Hour)))
	}

	if deletedCount > 0 {
		slog.Info("scratch cleanup complete",
			slog.Int("removed", deletedCount),
			slog.String("freed", formatMB(deletedSize)))
	}
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func formatMB(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/(1024*1024))
}

// EnsureDir creates dir if it doesn't exist
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	slog.Info("scratch directory ready", slog.String("dir", dir))
	return nil
}
