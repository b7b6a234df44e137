package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/models"
)

// Database archives normalized records in SQLite
type Database struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewDatabase creates a new SQLite database connection
func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:  db,
		log: log,
	}

	if err := database.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.db.Close()
}

func (d *Database) initTables() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		post_id TEXT,
		post_url TEXT NOT NULL,
		creation_time TEXT NOT NULL,
		attachments TEXT NOT NULL,
		text TEXT NOT NULL,
		total_reaction_count INTEGER NOT NULL,
		reactions TEXT NOT NULL,
		comment_count INTEGER NOT NULL,
		share_count INTEGER NOT NULL,
		like_count INTEGER NOT NULL,
		play_count INTEGER NOT NULL,
		author_name TEXT NOT NULL,
		author_id TEXT NOT NULL,
		engagement INTEGER NOT NULL,
		imported_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_engagement ON records(engagement DESC);
	CREATE INDEX IF NOT EXISTS idx_records_author ON records(author_name);
	CREATE INDEX IF NOT EXISTS idx_records_platform ON records(platform);
	`

	_, err := d.db.Exec(query)
	return err
}

// RecordKey is the archive key of a record. Records without a post id
// never collide, so each gets a random key.
func RecordKey(platform string, rec models.Record) string {
	if rec.PostID == nil {
		return platform + ":" + uuid.NewString()
	}
	return platform + ":" + models.IDString(rec.PostID)
}

// SaveRecords upserts a batch in one transaction and returns how many rows
// were written
func (d *Database) SaveRecords(platform string, records []models.Record) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO records (
		key, platform, post_id, post_url, creation_time, attachments, text,
		total_reaction_count, reactions, comment_count, share_count,
		like_count, play_count, author_name, author_id, engagement, imported_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	saved := 0
	for _, rec := range records {
		attachments, err := json.Marshal(rec.Attachments)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to encode attachments: %w", err)
		}
		reactions, err := json.Marshal(rec.Reactions)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to encode reactions: %w", err)
		}

		var postID any
		if rec.PostID != nil {
			postID = models.IDString(rec.PostID)
		}

		_, err = stmt.Exec(
			RecordKey(platform, rec), platform, postID, rec.PostURL, rec.CreationTime,
			string(attachments), rec.Text, rec.TotalReactionCount, string(reactions),
			rec.CommentCount, rec.ShareCount, rec.LikeCount, rec.PlayCount,
			rec.AuthorName, rec.AuthorID, rec.Engagement(), now,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to save record: %w", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"platform": platform,
		"saved":    saved,
	}).Debug("Archived records")

	return saved, nil
}

const selectRecords = `
	SELECT key, platform, post_id, post_url, creation_time, attachments, text,
		total_reaction_count, reactions, comment_count, share_count,
		like_count, play_count, author_name, author_id, imported_at
	FROM records
	`

// GetTopRecordsByEngagement returns the top N records by engagement
func (d *Database) GetTopRecordsByEngagement(limit int) ([]models.ArchivedRecord, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query(selectRecords+`ORDER BY engagement DESC, key LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows, limit)
}

// GetRecordsByPlatform returns every archived record of one platform
func (d *Database) GetRecordsByPlatform(platform string) ([]models.ArchivedRecord, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query(selectRecords+`WHERE platform = ? ORDER BY engagement DESC, key`, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for platform %s: %w", platform, err)
	}
	defer rows.Close()

	return scanRecords(rows, 0)
}

func scanRecords(rows *sql.Rows, capacity int) ([]models.ArchivedRecord, error) {
	records := make([]models.ArchivedRecord, 0, capacity)
	for rows.Next() {
		var (
			ar          models.ArchivedRecord
			postID      sql.NullString
			attachments string
			reactions   string
		)
		rec := &ar.Record

		err := rows.Scan(
			&ar.Key, &ar.Platform, &postID, &rec.PostURL, &rec.CreationTime, &attachments,
			&rec.Text, &rec.TotalReactionCount, &reactions, &rec.CommentCount,
			&rec.ShareCount, &rec.LikeCount, &rec.PlayCount, &rec.AuthorName,
			&rec.AuthorID, &ar.ImportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		// ids come back as text whatever their type was on import
		if postID.Valid {
			rec.PostID = postID.String
		}
		if err := json.Unmarshal([]byte(attachments), &rec.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
		if err := json.Unmarshal([]byte(reactions), &rec.Reactions); err != nil {
			return nil, fmt.Errorf("failed to decode reactions: %w", err)
		}

		records = append(records, ar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetTopAuthorsByRecordCount returns the top N authors by record count
func (d *Database) GetTopAuthorsByRecordCount(limit int) (map[string]int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := `
	SELECT author_name, COUNT(*) as record_count
	FROM records
	WHERE author_name != ''
	GROUP BY author_name
	ORDER BY record_count DESC
	LIMIT ?
	`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top authors: %w", err)
	}
	defer rows.Close()

	authors := make(map[string]int)
	for rows.Next() {
		var author string
		var count int

		if err := rows.Scan(&author, &count); err != nil {
			return nil, fmt.Errorf("failed to scan author record count: %w", err)
		}

		authors[author] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return authors, nil
}

// GetRecordCountsByPlatform returns how many records each platform holds
func (d *Database) GetRecordCountsByPlatform() (map[string]int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query(`SELECT platform, COUNT(*) FROM records GROUP BY platform`)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, fmt.Errorf("failed to scan platform count: %w", err)
		}
		counts[platform] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// GetTotalRecords returns the total number of archived records
func (d *Database) GetTotalRecords() (int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total records: %w", err)
	}

	return count, nil
}
