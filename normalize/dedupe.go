package normalize

import (
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/models"
)

// DedupeOptions controls how post ids are compared
type DedupeOptions struct {
	// CanonicalIDs compares ids by their string form, so 123 and "123"
	// collapse. Off by default: ids are compared by exact value and type.
	CanonicalIDs bool
}

// Dedupe drops records whose post_id was already seen, keeping the first
// occurrence and the relative order. Records without a post_id are always
// kept.
func Dedupe(records []models.Record, opts DedupeOptions, log *logrus.Logger) []models.Record {
	seen := make(map[any]struct{}, len(records))
	result := make([]models.Record, 0, len(records))

	for _, rec := range records {
		if rec.PostID == nil {
			result = append(result, rec)
			continue
		}

		key := dedupeKey(rec.PostID, opts)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, rec)
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"before":        len(records),
			"after":         len(result),
			"canonical_ids": opts.CanonicalIDs,
		}).Info("Removed duplicate records")
	}

	return result
}

// dedupeKey must be comparable; anything else (a scraped object used as an
// id) is keyed by its rendered form
func dedupeKey(id any, opts DedupeOptions) any {
	if opts.CanonicalIDs {
		return models.IDString(id)
	}
	switch id.(type) {
	case map[string]any, []any:
		return struct{ rendered string }{models.IDString(id)}
	}
	return id
}
