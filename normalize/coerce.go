package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brettboylen/zs-parser/models"
)

// TimeLayout is the creation_time layout, always rendered in local time
const TimeLayout = "2006-01-02 15:04:05"

// ToCount coerces a scraped counter to a non-negative int. Strings may carry
// grouping commas ("1,234"); anything unparsable, negative or boolean is 0.
// Counts beyond the int range saturate at math.MaxInt.
func ToCount(v any) int {
	switch n := v.(type) {
	case nil, bool:
		return 0
	case int:
		return clampCount(int64(n))
	case int64:
		return clampCount(n)
	case float64:
		return floatCount(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return clampCount(i)
		}
		if f, err := n.Float64(); err == nil {
			return floatCount(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return 0
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return clampCount(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatCount(f)
		}
		return 0
	default:
		return 0
	}
}

// clampCount saturates at math.MaxInt
func clampCount(i int64) int {
	if i < 0 {
		return 0
	}
	if i > math.MaxInt {
		return math.MaxInt
	}
	return int(i)
}

// floatCount saturates out of range values before converting, int64(f) is
// undefined above the int64 range
func floatCount(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt
	}
	return clampCount(int64(f))
}

// toUnix reads a unix timestamp in seconds from a number or numeric string
func toUnix(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// FormatTimestamp renders unix seconds as local time
func FormatTimestamp(sec int64) string {
	return time.Unix(sec, 0).Local().Format(TimeLayout)
}

// earliest formats the smallest timestamp among candidates, or Unknown when
// none of them is numeric
func earliest(candidates []any) string {
	found := false
	var min int64
	for _, c := range candidates {
		ts, ok := toUnix(c)
		if !ok {
			continue
		}
		if !found || ts < min {
			min = ts
			found = true
		}
	}
	if !found {
		return models.UnknownTime
	}
	return FormatTimestamp(min)
}

// urlSet returns the unique non-empty strings among values, sorted
func urlSet(values ...[]any) []string {
	seen := make(map[string]struct{})
	for _, vs := range values {
		for _, v := range vs {
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func firstString(values []any) string {
	for _, v := range values {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return models.IDString(s)
	}
}
