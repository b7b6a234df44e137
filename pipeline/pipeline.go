// Package pipeline runs one read, dispatch, normalize, dedupe pass over an
// export. A run is synchronous and shares no state with other runs.
package pipeline

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/input"
	"github.com/brettboylen/zs-parser/models"
	"github.com/brettboylen/zs-parser/normalize"
)

// Options configures a run
type Options struct {
	Registry *normalize.Registry
	Dedupe   normalize.DedupeOptions
	Log      *logrus.Logger
}

// Result is the outcome of a successful run. A run over empty input
// succeeds with zero records, see Empty.
type Result struct {
	Platform string
	Mode     input.Mode
	Records  []models.Record
	Counts   models.RunCounts
}

// Empty reports the "no data" outcome
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// Run reads r and returns the normalized, deduplicated records. A decode
// failure is returned wrapping input.ErrDecode and yields no result.
func Run(r io.Reader, opts Options) (*Result, error) {
	loaded, err := input.Load(r, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}
	return process(loaded, opts), nil
}

// RunBytes is Run over an in-memory buffer
func RunBytes(raw []byte, opts Options) (*Result, error) {
	loaded, err := input.Parse(raw, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}
	return process(loaded, opts), nil
}

func process(loaded *input.Result, opts Options) *Result {
	result := &Result{
		Mode:    loaded.Mode,
		Records: []models.Record{},
		Counts: models.RunCounts{
			Read:         len(loaded.Records),
			SkippedLines: loaded.SkippedLines,
		},
	}

	if len(loaded.Records) == 0 {
		opts.Log.Warn("No records in input")
		return result
	}

	platform := opts.Registry.Dispatch(loaded.Records)
	result.Platform = platform.Name

	normalized := make([]models.Record, 0, len(loaded.Records))
	for _, raw := range loaded.Records {
		normalized = append(normalized, platform.Normalize(raw))
	}
	result.Counts.Normalized = len(normalized)

	result.Records = normalize.Dedupe(normalized, opts.Dedupe, opts.Log)
	result.Counts.Unique = len(result.Records)

	opts.Log.WithFields(logrus.Fields{
		"platform":      result.Platform,
		"mode":          result.Mode,
		"read":          result.Counts.Read,
		"skipped_lines": result.Counts.SkippedLines,
		"unique":        result.Counts.Unique,
	}).Info("Pipeline finished")

	return result
}
