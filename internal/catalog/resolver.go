package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Resolution is the outcome of resolving a barcode set.
type Resolution struct {
	// CatalogNumber is nil when no candidate matched any pattern.
	CatalogNumber *string
	// Others holds every remaining candidate, naturally sorted.
	Others []string
}

// Resolver selects canonical catalog numbers from barcode candidates.
type Resolver struct {
	patterns []*regexp.Regexp
	prefix   string
}

// NewResolver compiles patterns with full anchoring. Order is significant only
// for reporting; matches from every pattern are pooled before sorting.
func NewResolver(patterns []string, requiredPrefix string) (*Resolver, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + trimmed + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compile catalog pattern %q: %w", trimmed, err)
		}
		compiled = append(compiled, re)
	}
	return &Resolver{patterns: compiled, prefix: strings.TrimSpace(requiredPrefix)}, nil
}

// MustNewResolver is NewResolver for patterns known to be valid.
func MustNewResolver(patterns []string, requiredPrefix string) *Resolver {
	r, err := NewResolver(patterns, requiredPrefix)
	if err != nil {
		panic(err)
	}
	return r
}

// Prefix returns the required catalog number prefix.
func (r *Resolver) Prefix() string {
	return r.prefix
}

// Resolve applies every pattern to every candidate. A candidate that fails a
// pattern lands in the other set even when a later pattern matches it; the
// remaining matches join it and the canonical value is removed.
func (r *Resolver) Resolve(candidates []string) Resolution {
	matches := make(map[string]struct{})
	others := make(map[string]struct{})

	for _, re := range r.patterns {
		for _, raw := range candidates {
			candidate := strings.TrimSpace(raw)
			if re.MatchString(candidate) {
				matches[candidate] = struct{}{}
				continue
			}
			others[candidate] = struct{}{}
		}
	}

	standardized := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for m := range matches {
		if r.prefix != "" && !strings.HasPrefix(m, r.prefix) {
			m = r.prefix + m
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		standardized = append(standardized, m)
	}
	SortNatural(standardized)

	var res Resolution
	if len(standardized) > 0 {
		canonical := standardized[0]
		res.CatalogNumber = &canonical
		for _, m := range standardized[1:] {
			others[m] = struct{}{}
		}
		delete(others, canonical)
	}

	res.Others = make([]string, 0, len(others))
	for o := range others {
		res.Others = append(res.Others, o)
	}
	SortNatural(res.Others)
	return res
}

// SortNatural orders values in place so that digit runs compare by numeric
// value ("BRIT9" before "BRIT10"). Values whose keys compare equal fall back
// to plain string order.
func SortNatural(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		return LessNatural(values[i], values[j])
	})
}

// LessNatural reports whether a sorts before b in natural order.
func LessNatural(a, b string) bool {
	if c := compareKeys(naturalKey(a), naturalKey(b)); c != 0 {
		return c < 0
	}
	return a < b
}

// keyPart is one run of a natural sort key. Even positions are text runs
// (possibly empty), odd positions are digit runs.
type keyPart struct {
	text   string
	digits bool
}

func naturalKey(s string) []keyPart {
	parts := []keyPart{}
	start := 0
	inDigits := false
	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		if isDigit != inDigits {
			parts = append(parts, keyPart{text: s[start:i], digits: inDigits})
			start = i
			inDigits = isDigit
		}
	}
	parts = append(parts, keyPart{text: s[start:], digits: inDigits})
	if inDigits {
		parts = append(parts, keyPart{})
	}
	return parts
}

func compareKeys(a, b []keyPart) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := comparePart(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func comparePart(a, b keyPart) int {
	if a.digits && b.digits {
		return compareNumeric(a.text, b.text)
	}
	return strings.Compare(a.text, b.text)
}

// compareNumeric compares two decimal digit strings by value without
// overflowing on long runs.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
