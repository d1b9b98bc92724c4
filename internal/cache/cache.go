package cache

import (
	"fmt"
	"log/slog"
	"time"

	"sitebook/internal/core"
)

// ReportCache caches daily ledger reports keyed by (project, date). Any
// write to a project's history invalidates all of its cached reports:
// a backdated edit changes every later day's carried forward, so
// per-day invalidation would not be safe.
type ReportCache struct {
	lru *LRUCache[core.DailyReport]
}

func NewReportCache(maxSize int, ttl time.Duration) *ReportCache {
	return &ReportCache{lru: NewLRUCache[core.DailyReport](maxSize, ttl)}
}

func reportKey(projectID int64, day core.Day) string {
	return fmt.Sprintf("%d|%s", projectID, day)
}

func (c *ReportCache) Get(projectID int64, day core.Day) (core.DailyReport, bool) {
	return c.lru.Get(reportKey(projectID, day))
}

func (c *ReportCache) Set(report core.DailyReport) {
	c.lru.Set(reportKey(report.ProjectID, report.Date), report)
}

// InvalidateProject drops every cached report for the project.
func (c *ReportCache) InvalidateProject(projectID int64) int {
	return c.lru.DeletePrefix(fmt.Sprintf("%d|", projectID))
}

func (c *ReportCache) CleanExpired() int { return c.lru.CleanExpired() }

func (c *ReportCache) Size() int { return c.lru.Size() }

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs the periodic expiry sweep for registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, cache := range m.caches {
				total += cache.CleanExpired()
			}
			if total > 0 {
				slog.Debug("Expired cache entries removed", "count", total)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
