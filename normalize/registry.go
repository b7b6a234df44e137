package normalize

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/models"
)

// NormalizeFunc maps one raw record to the common schema. Implementations
// must be total: missing fields resolve to defaults, never to a panic.
type NormalizeFunc func(models.RawRecord) models.Record

// Platform is one registry entry
type Platform struct {
	Name      string
	Match     []string // case-insensitive substrings of the discriminator
	Normalize NormalizeFunc
}

// Registry picks the normalizer for a batch from its discriminator
type Registry struct {
	platforms []*Platform
	fallback  *Platform
	log       *logrus.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{log: log}
}

// DefaultRegistry knows Facebook and TikTok. Facebook doubles as the
// generic fallback: it is the best available guess for an unknown export,
// not a neutral no-op.
func DefaultRegistry(log *logrus.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(Platform{Name: "facebook", Match: []string{"facebook"}, Normalize: Facebook})
	r.Register(Platform{Name: "tiktok", Match: []string{"tiktok"}, Normalize: TikTok})
	return r
}

// Register appends a platform; the first one registered is the fallback
// until SetFallback says otherwise
func (r *Registry) Register(p Platform) {
	entry := &Platform{Name: p.Name, Normalize: p.Normalize}
	for _, m := range p.Match {
		entry.Match = append(entry.Match, strings.ToLower(m))
	}
	r.platforms = append(r.platforms, entry)
	if r.fallback == nil {
		r.fallback = entry
	}
}

// SetFallback makes the named platform the default entry
func (r *Registry) SetFallback(name string) error {
	p, ok := r.byName(name)
	if !ok {
		return fmt.Errorf("unknown platform %q", name)
	}
	r.fallback = p
	return nil
}

// AddAliases adds discriminator substrings to a registered platform
func (r *Registry) AddAliases(name string, aliases ...string) error {
	p, ok := r.byName(name)
	if !ok {
		return fmt.Errorf("unknown platform %q", name)
	}
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			p.Match = append(p.Match, a)
		}
	}
	return nil
}

// Names lists the registered platforms in match order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.platforms))
	for _, p := range r.platforms {
		names = append(names, p.Name)
	}
	return names
}

// Fallback returns the default entry
func (r *Registry) Fallback() *Platform {
	return r.fallback
}

// Lookup matches a discriminator against every platform in order
func (r *Registry) Lookup(discriminator string) (*Platform, bool) {
	d := strings.ToLower(discriminator)
	if d == "" {
		return nil, false
	}
	for _, p := range r.platforms {
		for _, m := range p.Match {
			if strings.Contains(d, m) {
				return p, true
			}
		}
	}
	return nil, false
}

// Dispatch selects one platform for the whole batch from the first record's
// discriminator. Mixed batches are normalized entirely by that platform.
func (r *Registry) Dispatch(records []models.RawRecord) *Platform {
	discriminator := ""
	if len(records) > 0 {
		discriminator = records[0].Platform()
	}

	if p, ok := r.Lookup(discriminator); ok {
		r.log.WithFields(logrus.Fields{
			"source_platform": discriminator,
			"platform":        p.Name,
		}).Info("Selected platform normalizer")
		return p
	}

	r.log.WithFields(logrus.Fields{
		"source_platform": discriminator,
		"fallback":        r.fallback.Name,
	}).Warn("Unrecognized source platform, using fallback normalizer")
	return r.fallback
}

func (r *Registry) byName(name string) (*Platform, bool) {
	for _, p := range r.platforms {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
