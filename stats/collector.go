package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/db"
	"github.com/brettboylen/zs-parser/models"
	"github.com/brettboylen/zs-parser/pipeline"
)

const (
	defaultTopRecordsLimit = 10
	defaultTopAuthorsLimit = 10
)

// Collector archives pipeline results and keeps statistics about them.
// The database is optional; without it only run counters are tracked.
type Collector struct {
	database        *db.Database
	refreshInterval time.Duration
	topRecordsLimit int
	topAuthorsLimit int
	stats           models.Statistics
	log             *logrus.Logger
	mutex           sync.RWMutex
}

// NewCollector creates a new collector
func NewCollector(database *db.Database, refreshInterval time.Duration, log *logrus.Logger) *Collector {
	return &Collector{
		database:        database,
		refreshInterval: refreshInterval,
		topRecordsLimit: defaultTopRecordsLimit,
		topAuthorsLimit: defaultTopAuthorsLimit,
		stats: models.Statistics{
			RecordsByPlatform:       make(map[string]int),
			TopRecordsByEngagement:  make([]models.ArchivedRecord, 0, defaultTopRecordsLimit),
			TopAuthorsByRecordCount: make(map[string]int),
			StartTime:               time.Now(),
			LastUpdated:             time.Now(),
		},
		log: log,
	}
}

// Start refreshes archive statistics until ctx is done. Other processes may
// write to the same archive, so the refresh runs on a timer.
func (c *Collector) Start(ctx context.Context) error {
	if c.database == nil || c.refreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	c.updateStatistics()

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.updateStatistics()
			c.logStatistics()
		}
	}
}

// Record accounts for a finished run and archives its records when a
// database is configured
func (c *Collector) Record(result *pipeline.Result) error {
	c.mutex.Lock()
	c.stats.Runs++
	c.stats.LastRun = result.Counts
	c.stats.LastPlatform = result.Platform
	c.stats.LastUpdated = time.Now()
	c.mutex.Unlock()

	if c.database == nil || result.Empty() {
		return nil
	}

	saved, err := c.database.SaveRecords(result.Platform, result.Records)
	if err != nil {
		return fmt.Errorf("failed to archive records: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"platform": result.Platform,
		"saved":    saved,
	}).Info("Archived records")

	c.updateStatistics()
	return nil
}

// updateStatistics reloads the archive statistics
func (c *Collector) updateStatistics() {
	if c.database == nil {
		return
	}

	topRecords, err := c.database.GetTopRecordsByEngagement(c.topRecordsLimit)
	if err != nil {
		c.log.WithError(err).Error("Failed to get top records")
		return
	}

	topAuthors, err := c.database.GetTopAuthorsByRecordCount(c.topAuthorsLimit)
	if err != nil {
		c.log.WithError(err).Error("Failed to get top authors")
		return
	}

	byPlatform, err := c.database.GetRecordCountsByPlatform()
	if err != nil {
		c.log.WithError(err).Error("Failed to get platform counts")
		return
	}

	total, err := c.database.GetTotalRecords()
	if err != nil {
		c.log.WithError(err).Error("Failed to get total records")
		return
	}

	c.mutex.Lock()
	c.stats.TopRecordsByEngagement = topRecords
	c.stats.TopAuthorsByRecordCount = topAuthors
	c.stats.RecordsByPlatform = byPlatform
	c.stats.TotalRecords = total
	c.stats.LastUpdated = time.Now()
	c.mutex.Unlock()
}

func (c *Collector) logStatistics() {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	c.log.WithFields(logrus.Fields{
		"total_records": c.stats.TotalRecords,
		"platforms":     len(c.stats.RecordsByPlatform),
		"runs":          c.stats.Runs,
		"running_since": time.Since(c.stats.StartTime).String(),
	}).Info("Statistics updated")
}

// GetStatistics returns a copy of the current statistics
func (c *Collector) GetStatistics() models.Statistics {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.stats
}
