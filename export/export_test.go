package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/zs-parser/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{
			PostID:             "p1",
			PostURL:            "https://www.facebook.com/p1?a=1&b=2",
			CreationTime:       "2023-11-14 22:13:20",
			Attachments:        []string{"https://img/a.jpg", "https://img/b.jpg"},
			Text:               "héllo <world>, \"quoted\"\nsecond line",
			TotalReactionCount: 15,
			Reactions:          models.Reactions{{Label: "Like", Count: 10}, {Label: "Love", Count: 5}},
			CommentCount:       3,
			ShareCount:         1,
		},
		{
			PostID:       json.Number("7301"),
			CreationTime: models.UnknownTime,
			Text:         "日本語",
			LikeCount:    100,
			PlayCount:    1000,
			AuthorName:   "alice",
			AuthorID:     "99",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected models.Format
		wantErr  bool
	}{
		{"csv", models.FormatCSV, false},
		{"JSON", models.FormatJSON, false},
		{" json ", models.FormatJSON, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseFormat(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	out, err := Marshal(sampleRecords(), models.FormatJSON)
	require.NoError(t, err)

	s := string(out)
	// indented, and neither HTML-escaped nor ASCII-escaped
	assert.True(t, strings.HasPrefix(s, "[\n  {\n    \"post_id\": \"p1\","), s)
	assert.Contains(t, s, `"text": "héllo <world>, \"quoted\"\nsecond line"`)
	assert.Contains(t, s, `"post_url": "https://www.facebook.com/p1?a=1&b=2"`)
	assert.Contains(t, s, `"text": "日本語"`)
	assert.Contains(t, s, `"reactions": {`)
	assert.Contains(t, s, `"post_id": 7301,`)
	assert.NotContains(t, s, `\u003c`)
	assert.NotContains(t, s, `\u0026`)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 2)

	// nil attachments are an empty list, never null
	assert.Equal(t, []any{}, decoded[1]["attachments"])
	assert.Equal(t, map[string]any{"Like": float64(10), "Love": float64(5)}, decoded[0]["reactions"])
}

func TestWriteJSONKeyOrder(t *testing.T) {
	out, err := Marshal(sampleRecords()[:1], models.FormatJSON)
	require.NoError(t, err)

	s := string(out)
	last := -1
	for _, col := range (models.Record{}).Columns() {
		idx := strings.Index(s, `"`+col+`":`)
		require.NotEqual(t, -1, idx, col)
		assert.Greater(t, idx, last, col)
		last = idx
	}
	assert.Less(t, strings.Index(s, `"Like"`), strings.Index(s, `"Love"`))
}

func TestWriteJSONEmpty(t *testing.T) {
	out, err := Marshal(nil, models.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out))
}

func TestWriteCSV(t *testing.T) {
	out, err := Marshal(sampleRecords(), models.FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, (models.Record{}).Columns(), rows[0])
	assert.Equal(t, "p1", rows[1][0])
	assert.Equal(t, "https://img/a.jpg; https://img/b.jpg", rows[1][3])
	assert.Equal(t, "héllo <world>, \"quoted\"\nsecond line", rows[1][4])
	assert.Equal(t, "Like:10; Love:5", rows[1][6])

	assert.Equal(t, "7301", rows[2][0])
	assert.Equal(t, "", rows[2][3])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "100", rows[2][9])
	assert.Equal(t, "alice", rows[2][11])
}

func TestWriteCSVEmpty(t *testing.T) {
	out, err := Marshal([]models.Record{}, models.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleRecords(), models.Format("xml")))
}

func TestFormatsHoldSameRecordCount(t *testing.T) {
	sets := map[string][]models.Record{
		"empty":  {},
		"one":    sampleRecords()[:1],
		"two":    sampleRecords(),
		"repeat": append(sampleRecords(), sampleRecords()...),
	}

	for name, records := range sets {
		t.Run(name, func(t *testing.T) {
			csvOut, err := Marshal(records, models.FormatCSV)
			require.NoError(t, err)
			jsonOut, err := Marshal(records, models.FormatJSON)
			require.NoError(t, err)

			csvCount, err := CountRecords(csvOut, models.FormatCSV)
			require.NoError(t, err)
			jsonCount, err := CountRecords(jsonOut, models.FormatJSON)
			require.NoError(t, err)

			assert.Equal(t, len(records), csvCount)
			assert.Equal(t, len(records), jsonCount)
		})
	}
}

func TestCountRecordsLoneObject(t *testing.T) {
	n, err := CountRecords([]byte(`{"post_id":"x"}`), models.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = CountRecords([]byte(`{`), models.FormatJSON)
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(models.FormatCSV))
	assert.Equal(t, "application/json; charset=utf-8", ContentType(models.FormatJSON))
}
