package db

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/zs-parser/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	database, err := NewDatabase(filepath.Join(t.TempDir(), "archive.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveAndQueryRecords(t *testing.T) {
	database := newTestDatabase(t)

	fb := []models.Record{
		{
			PostID:             "p1",
			PostURL:            "https://www.facebook.com/p1",
			CreationTime:       "2023-11-14 22:13:20",
			Attachments:        []string{"https://img/a.jpg"},
			Text:               "hello",
			TotalReactionCount: 15,
			Reactions:          models.Reactions{{Label: "Like", Count: 10}, {Label: "Love", Count: 5}},
			CommentCount:       2,
		},
		{PostID: "p2", CreationTime: models.UnknownTime, ShareCount: 1},
	}
	tt := []models.Record{
		{PostID: json.Number("7301"), LikeCount: 50, AuthorName: "alice", AuthorID: "99"},
		{PostID: json.Number("7302"), LikeCount: 1, AuthorName: "alice"},
		{PostID: json.Number("7303"), AuthorName: "bob"},
	}

	saved, err := database.SaveRecords("facebook", fb)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	saved, err = database.SaveRecords("tiktok", tt)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	total, err := database.GetTotalRecords()
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	byPlatform, err := database.GetRecordCountsByPlatform()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"facebook": 2, "tiktok": 3}, byPlatform)

	top, err := database.GetTopRecordsByEngagement(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "7301", top[0].Record.PostID)
	assert.Equal(t, "tiktok", top[0].Platform)
	assert.Equal(t, "p1", top[1].Record.PostID)
	assert.Equal(t, fb[0].Reactions, top[1].Record.Reactions)
	assert.Equal(t, fb[0].Attachments, top[1].Record.Attachments)
	assert.False(t, top[1].ImportedAt.IsZero())

	authors, err := database.GetTopAuthorsByRecordCount(10)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, authors)

	fbRecords, err := database.GetRecordsByPlatform("facebook")
	require.NoError(t, err)
	require.Len(t, fbRecords, 2)
	assert.Equal(t, "facebook:p1", fbRecords[0].Key)
}

func TestSaveRecordsUpserts(t *testing.T) {
	database := newTestDatabase(t)

	_, err := database.SaveRecords("facebook", []models.Record{{PostID: "p1", Text: "old"}})
	require.NoError(t, err)
	_, err = database.SaveRecords("facebook", []models.Record{{PostID: "p1", Text: "new"}})
	require.NoError(t, err)

	records, err := database.GetRecordsByPlatform("facebook")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Record.Text)
}

func TestRecordsWithoutIDNeverCollide(t *testing.T) {
	database := newTestDatabase(t)

	_, err := database.SaveRecords("facebook", []models.Record{{Text: "a"}, {Text: "b"}})
	require.NoError(t, err)

	records, err := database.GetRecordsByPlatform("facebook")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Nil(t, r.Record.PostID)
		assert.True(t, strings.HasPrefix(r.Key, "facebook:"))
	}
	assert.NotEqual(t, records[0].Key, records[1].Key)
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "tiktok:7301", RecordKey("tiktok", models.Record{PostID: json.Number("7301")}))
	assert.Equal(t, "facebook:p1", RecordKey("facebook", models.Record{PostID: "p1"}))
	assert.NotEqual(t, RecordKey("facebook", models.Record{}), RecordKey("facebook", models.Record{}))
}

func TestEmptyDatabase(t *testing.T) {
	database := newTestDatabase(t)

	total, err := database.GetTotalRecords()
	require.NoError(t, err)
	assert.Zero(t, total)

	top, err := database.GetTopRecordsByEngagement(5)
	require.NoError(t, err)
	assert.Empty(t, top)

	authors, err := database.GetTopAuthorsByRecordCount(5)
	require.NoError(t, err)
	assert.Empty(t, authors)
}
