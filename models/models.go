package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UnknownTime marks a record whose creation time could not be found
const UnknownTime = "Unknown"

// RawRecord is one scraped post exactly as exported, platform payload under "data"
type RawRecord map[string]any

// Platform returns the discriminator string, or "" when it is missing
func (r RawRecord) Platform() string {
	s, _ := r["source_platform"].(string)
	return s
}

// Data returns the platform payload, or nil when the envelope has none
func (r RawRecord) Data() map[string]any {
	d, _ := r["data"].(map[string]any)
	return d
}

// Reaction is one entry of a reaction breakdown
type Reaction struct {
	Label string
	Count int
}

// Reactions keeps the breakdown in source order
type Reactions []Reaction

// Add merges count into the entry for label, appending a new entry the
// first time a label is seen. Labels stay unique, so the JSON object never
// repeats a key.
func (rs Reactions) Add(label string, count int) Reactions {
	for i := range rs {
		if rs[i].Label == label {
			rs[i].Count += count
			return rs
		}
	}
	return append(rs, Reaction{Label: label, Count: count})
}

// Total sums every reaction count
func (rs Reactions) Total() int {
	total := 0
	for _, r := range rs {
		total += r.Count
	}
	return total
}

// String renders "label:count" pairs joined with "; "
func (rs Reactions) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, r.Label+":"+strconv.Itoa(r.Count))
	}
	return strings.Join(parts, "; ")
}

// MarshalJSON writes the breakdown as an object, keeping source order
func (rs Reactions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(r.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(r.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object breakdown; key order follows the input
func (rs *Reactions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	out := Reactions{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := tok.(string)
		var count int
		if err := dec.Decode(&count); err != nil {
			return err
		}
		out = append(out, Reaction{Label: label, Count: count})
	}
	*rs = out
	return nil
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Record is the flat, platform agnostic shape every normalizer produces.
// Fields that do not apply to a platform stay empty or zero.
type Record struct {
	PostID             any       `json:"post_id"`
	PostURL            string    `json:"post_url"`
	CreationTime       string    `json:"creation_time"`
	Attachments        []string  `json:"attachments"`
	Text               string    `json:"text"`
	TotalReactionCount int       `json:"total_reaction_count"`
	Reactions          Reactions `json:"reactions"`
	CommentCount       int       `json:"comment_count"`
	ShareCount         int       `json:"share_count"`
	LikeCount          int       `json:"like_count"`
	PlayCount          int       `json:"play_count"`
	AuthorName         string    `json:"author_name"`
	AuthorID           string    `json:"author_id"`
}

// Columns lists the record keys in output order
func (r Record) Columns() []string {
	return []string{
		"post_id", "post_url", "creation_time", "attachments", "text",
		"total_reaction_count", "reactions", "comment_count", "share_count",
		"like_count", "play_count", "author_name", "author_id",
	}
}

// Values returns each field rendered as a flat string, in Columns order
func (r Record) Values() []string {
	return []string{
		IDString(r.PostID),
		r.PostURL,
		r.CreationTime,
		strings.Join(r.Attachments, "; "),
		r.Text,
		strconv.Itoa(r.TotalReactionCount),
		r.Reactions.String(),
		strconv.Itoa(r.CommentCount),
		strconv.Itoa(r.ShareCount),
		strconv.Itoa(r.LikeCount),
		strconv.Itoa(r.PlayCount),
		r.AuthorName,
		r.AuthorID,
	}
}

// Engagement is the sum of every engagement counter, used for ranking
func (r Record) Engagement() int {
	return r.TotalReactionCount + r.CommentCount + r.ShareCount + r.LikeCount
}

// IDString renders a post id as text; nil becomes ""
func IDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Format selects the serialized output
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ArchivedRecord is a Record as stored in the archive
type ArchivedRecord struct {
	Key        string    `json:"key"`
	Platform   string    `json:"platform"`
	Record     Record    `json:"record"`
	ImportedAt time.Time `json:"imported_at"`
}

// RunCounts holds the per stage counters of one pipeline run
type RunCounts struct {
	Read         int `json:"read"`
	SkippedLines int `json:"skipped_lines"`
	Normalized   int `json:"normalized"`
	Unique       int `json:"unique"`
}

// Statistics holds statistics about archived and recently parsed records
type Statistics struct {
	TotalRecords            int              `json:"total_records"`
	RecordsByPlatform       map[string]int   `json:"records_by_platform"`
	TopRecordsByEngagement  []ArchivedRecord `json:"top_records_by_engagement"`
	TopAuthorsByRecordCount map[string]int   `json:"top_authors_by_record_count"`
	Runs                    int              `json:"runs"`
	LastRun                 RunCounts        `json:"last_run"`
	LastPlatform            string           `json:"last_platform"`
	StartTime               time.Time        `json:"start_time"`
	LastUpdated             time.Time        `json:"last_updated"`
}
