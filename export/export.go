// Package export renders normalized records as CSV or indented JSON. Both
// renderings of the same records always hold the same number of records.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/brettboylen/zs-parser/models"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (models.Format, error) {
	switch models.Format(strings.ToLower(strings.TrimSpace(s))) {
	case models.FormatCSV:
		return models.FormatCSV, nil
	case models.FormatJSON:
		return models.FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want csv or json)", s)
	}
}

// Write renders records to w in the given format
func Write(w io.Writer, records []models.Record, format models.Format) error {
	switch format {
	case models.FormatJSON:
		return writeJSON(w, records)
	case models.FormatCSV:
		return writeCSV(w, records)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Marshal is Write into a buffer
func Marshal(records []models.Record, format models.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, records, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of a rendered payload
func ContentType(format models.Format) string {
	if format == models.FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

func writeJSON(w io.Writer, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	out := make([]models.Record, len(records))
	for i, rec := range records {
		if rec.Attachments == nil {
			rec.Attachments = []string{}
		}
		out[i] = rec
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(records[0].Columns()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.Values()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// CountRecords counts the records held by a rendered payload: CSV rows minus
// the header, or the JSON list length (1 for a lone object)
func CountRecords(payload []byte, format models.Format) (int, error) {
	switch format {
	case models.FormatCSV:
		r := csv.NewReader(bytes.NewReader(payload))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(rows) == 0 {
			return 0, nil
		}
		return len(rows) - 1, nil
	case models.FormatJSON:
		var root any
		if err := json.Unmarshal(payload, &root); err != nil {
			return 0, fmt.Errorf("failed to read JSON: %w", err)
		}
		if list, ok := root.([]any); ok {
			return len(list), nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported output format %q", format)
	}
}
