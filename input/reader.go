// Package input turns a raw export into raw records, accepting either a JSON
// array of objects or newline delimited JSON.
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/models"
)

// ErrDecode means the input was neither a JSON array of objects nor carried
// a single parsable NDJSON line
var ErrDecode = errors.New("input is neither a JSON array nor NDJSON")

// Mode is the detected layout of the input
type Mode string

const (
	ModeJSONArray Mode = "json_array"
	ModeNDJSON    Mode = "ndjson"
)

const fragmentLen = 100

// Result is what Load read
type Result struct {
	Mode         Mode
	Records      []models.RawRecord
	SkippedLines int
}

// Load reads the whole stream and decodes it. Zero records with no decode
// failure is a valid, empty result.
func Load(r io.Reader, log *logrus.Logger) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return Parse(raw, log)
}

// Parse decodes an in-memory buffer, see Load
func Parse(raw []byte, log *logrus.Logger) (*Result, error) {
	if records, ok := parseArray(raw); ok {
		log.WithField("records", len(records)).Info("Detected JSON array")
		return &Result{Mode: ModeJSONArray, Records: records}, nil
	}

	log.Info("Detected NDJSON")
	return parseNDJSON(raw, log)
}

func parseArray(raw []byte) ([]models.RawRecord, bool) {
	var items []any
	if err := decode(raw, &items); err != nil {
		return nil, false
	}
	if items == nil {
		// a literal null decodes into a nil slice
		return nil, false
	}

	records := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, models.RawRecord(obj))
	}
	return records, true
}

func parseNDJSON(raw []byte, log *logrus.Logger) (*Result, error) {
	result := &Result{Mode: ModeNDJSON, Records: []models.RawRecord{}}
	nonBlank := 0

	for i, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		nonBlank++

		var obj map[string]any
		if err := decode(line, &obj); err != nil || obj == nil {
			if err == nil {
				err = errors.New("line is not a JSON object")
			}
			result.SkippedLines++
			log.WithError(err).WithFields(logrus.Fields{
				"line":     i + 1,
				"fragment": fragment(line),
			}).Error("Failed to decode line")
			continue
		}
		result.Records = append(result.Records, models.RawRecord(obj))
	}

	if nonBlank > 0 && len(result.Records) == 0 {
		return nil, fmt.Errorf("%w: none of %d lines could be decoded", ErrDecode, nonBlank)
	}

	log.WithFields(logrus.Fields{
		"records": len(result.Records),
		"skipped": result.SkippedLines,
	}).Info("Decoded NDJSON lines")

	return result, nil
}

// decode keeps numbers as json.Number so large ids survive untouched and
// rejects trailing data after the first value
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

func fragment(line []byte) string {
	if len(line) <= fragmentLen {
		return string(line)
	}
	cut := line[:fragmentLen]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}
