// Package extract evaluates JSONPath expressions against decoded JSON trees.
//
// Supported forms are the ones the normalizers rely on: recursive descent
// ($..key), wildcards over arrays and objects ([*], .*) and dotted child
// access (a.b.c). A path that does not start with $ or @ is rooted at the
// value it is applied to.
//
// Decoded objects are Go maps and carry no key order, so matches are
// returned in location order instead: shallower locations first, then
// location by location with keys compared as strings and array indexes as
// numbers. The result is the same for every run over the same document.
package extract

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
)

// Path is a compiled path expression
type Path struct {
	source string
	expr   jp.Expr
}

// Compile parses a path expression
func Compile(path string) (*Path, error) {
	src := strings.TrimSpace(path)
	if src == "" {
		return nil, fmt.Errorf("empty path expression")
	}
	if !strings.HasPrefix(src, "$") && !strings.HasPrefix(src, "@") {
		src = "$." + src
	}

	expr, err := jp.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path %q: %w", path, err)
	}

	return &Path{source: path, expr: expr}, nil
}

// MustCompile is Compile for package level paths; it panics on bad syntax
func MustCompile(path string) *Path {
	p, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the expression as written
func (p *Path) String() string {
	return p.source
}

// Match is one value found by a path
type Match struct {
	Location string // normalized location, e.g. $.a.b[0].c
	Value    any
	loc      jp.Expr
}

// Matches returns every match under v in location order. Absence is not an
// error: the result is an empty, non-nil slice.
func (p *Path) Matches(v any) []Match {
	if v == nil {
		return []Match{}
	}

	locs := p.expr.Locate(v, 0)
	matches := make([]Match, 0, len(locs))
	seen := make(map[string]struct{}, len(locs))
	for _, loc := range locs {
		key := loc.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		value, ok := loc.FirstFound(v)
		if !ok {
			continue
		}
		matches = append(matches, Match{Location: key, Value: value, loc: loc})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return compareLocations(matches[i].loc, matches[j].loc) < 0
	})
	return matches
}

// Values returns the value of every match under v in location order
func (p *Path) Values(v any) []any {
	matches := p.Matches(v)
	values := make([]any, 0, len(matches))
	for _, m := range matches {
		values = append(values, m.Value)
	}
	return values
}

// First returns the shallowest match and whether there was one
func (p *Path) First(v any) (any, bool) {
	matches := p.Matches(v)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0].Value, true
}

// Strings returns the non-empty string matches, skipping every other type
func (p *Path) Strings(v any) []string {
	matches := p.Values(v)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s, ok := m.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

var cache sync.Map // string -> *Path

// Values compiles path (cached) and returns every match under v. An
// invalid path yields no matches.
func Values(v any, path string) []any {
	p, err := cached(path)
	if err != nil {
		return []any{}
	}
	return p.Values(v)
}

// First is the ad hoc form of (*Path).First
func First(v any, path string) (any, bool) {
	p, err := cached(path)
	if err != nil {
		return nil, false
	}
	return p.First(v)
}

func cached(path string) (*Path, error) {
	if p, ok := cache.Load(path); ok {
		return p.(*Path), nil
	}
	p, err := Compile(path)
	if err != nil {
		return nil, err
	}
	cache.Store(path, p)
	return p, nil
}

func compareLocations(a, b jp.Expr) int {
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	for i := range a {
		if c := compareFrags(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// compareFrags orders array indexes numerically and before object keys
func compareFrags(a, b jp.Frag) int {
	an, aIndex := a.(jp.Nth)
	bn, bIndex := b.(jp.Nth)
	switch {
	case aIndex && bIndex:
		return cmp.Compare(an, bn)
	case aIndex:
		return -1
	case bIndex:
		return 1
	}

	ac, _ := a.(jp.Child)
	bc, _ := b.(jp.Child)
	return strings.Compare(string(ac), string(bc))
}
