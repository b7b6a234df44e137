package stats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/zs-parser/db"
	"github.com/brettboylen/zs-parser/models"
	"github.com/brettboylen/zs-parser/pipeline"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func tiktokResult() *pipeline.Result {
	return &pipeline.Result{
		Platform: "tiktok",
		Records: []models.Record{
			{PostID: json.Number("1"), LikeCount: 10, AuthorName: "alice"},
			{PostID: json.Number("2"), LikeCount: 3, AuthorName: "alice"},
			{PostID: json.Number("3"), AuthorName: "bob"},
		},
		Counts: models.RunCounts{Read: 3, Normalized: 3, Unique: 3},
	}
}

func TestRecordWithoutDatabase(t *testing.T) {
	c := NewCollector(nil, 0, quietLogger())

	require.NoError(t, c.Record(tiktokResult()))
	require.NoError(t, c.Record(&pipeline.Result{Records: []models.Record{}}))

	s := c.GetStatistics()
	assert.Equal(t, 2, s.Runs)
	assert.Equal(t, models.RunCounts{}, s.LastRun)
	assert.Zero(t, s.TotalRecords)
}

func TestRecordArchives(t *testing.T) {
	log := quietLogger()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "stats.db"), log)
	require.NoError(t, err)
	defer database.Close()

	c := NewCollector(database, time.Minute, log)
	require.NoError(t, c.Record(tiktokResult()))

	s := c.GetStatistics()
	assert.Equal(t, 1, s.Runs)
	assert.Equal(t, "tiktok", s.LastPlatform)
	assert.Equal(t, 3, s.LastRun.Unique)
	assert.Equal(t, 3, s.TotalRecords)
	assert.Equal(t, map[string]int{"tiktok": 3}, s.RecordsByPlatform)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, s.TopAuthorsByRecordCount)
	require.NotEmpty(t, s.TopRecordsByEngagement)
	assert.Equal(t, "1", s.TopRecordsByEngagement[0].Record.PostID)
}

func TestRecordFailsOnClosedDatabase(t *testing.T) {
	log := quietLogger()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "closed.db"), log)
	require.NoError(t, err)
	database.Close()

	c := NewCollector(database, 0, log)
	assert.Error(t, c.Record(tiktokResult()))
	assert.Equal(t, 1, c.GetStatistics().Runs)
}

func TestStartStopsOnCancel(t *testing.T) {
	log := quietLogger()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "start.db"), log)
	require.NoError(t, err)
	defer database.Close()

	for _, c := range []*Collector{
		NewCollector(nil, time.Millisecond, log),
		NewCollector(database, 5*time.Millisecond, log),
	} {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- c.Start(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.True(t, errors.Is(err, context.Canceled))
		case <-time.After(time.Second):
			t.Fatal("collector did not stop")
		}
	}
}
