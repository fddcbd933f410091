// Package matcher finds the catalog image for a product name.
//
// Names are normalized (see Normalize) and looked up exactly first. When
// that fails, catalog keys that contain the name or are contained by it
// are scored by normalized edit distance and the best one wins, ties going
// to the lexicographically smallest key.
package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// ProductMatcher resolves a product name to an image reference.
type ProductMatcher interface {
	Match(productName string) (ref string, ok bool)
}

// Match describes how a name was resolved.
type Match struct {
	Key        string  // Normalized catalog key that matched
	Ref        string  // Image reference
	Similarity float64 // 1.0 for exact matches
	Exact      bool
}

// CatalogMatcher matches against an in-memory catalog.
type CatalogMatcher struct {
	entries       map[string]string
	keys          []string
	minSimilarity float64
	rules         []SizeRule
}

var _ ProductMatcher = (*CatalogMatcher)(nil)

// Option configures a CatalogMatcher.
type Option func(*CatalogMatcher)

// WithMinSimilarity rejects fuzzy candidates scoring below min.
func WithMinSimilarity(threshold float64) Option {
	return func(m *CatalogMatcher) {
		m.minSimilarity = threshold
	}
}

// WithSizeRules replaces the size token rules.
func WithSizeRules(rules ...SizeRule) Option {
	return func(m *CatalogMatcher) {
		m.rules = rules
	}
}

// New builds a matcher over catalog, a map of product name to image
// reference. Names that normalize to the same key keep the entry whose raw
// name sorts first.
func New(catalog map[string]string, opts ...Option) *CatalogMatcher {
	m := &CatalogMatcher{
		entries: make(map[string]string, len(catalog)),
		rules:   DefaultSizeRules,
	}
	for _, opt := range opts {
		opt(m)
	}

	raw := make([]string, 0, len(catalog))
	for name := range catalog {
		raw = append(raw, name)
	}
	sort.Strings(raw)

	for _, name := range raw {
		key := normalize(name, m.rules)
		if key == "" || catalog[name] == "" {
			continue
		}
		if _, ok := m.entries[key]; ok {
			continue
		}
		m.entries[key] = catalog[name]
		m.keys = append(m.keys, key)
	}
	sort.Strings(m.keys)
	return m
}

// Len returns the number of distinct normalized keys.
func (m *CatalogMatcher) Len() int {
	return len(m.keys)
}

// Match implements ProductMatcher.
func (m *CatalogMatcher) Match(productName string) (string, bool) {
	res, ok := m.Lookup(productName)
	return res.Ref, ok
}

// Lookup resolves productName and reports how.
func (m *CatalogMatcher) Lookup(productName string) (Match, bool) {
	name := normalize(productName, m.rules)
	if name == "" {
		return Match{}, false
	}

	if ref, ok := m.entries[name]; ok {
		return Match{Key: name, Ref: ref, Similarity: 1, Exact: true}, true
	}

	var best Match
	found := false
	for _, key := range m.keys {
		if !strings.Contains(key, name) && !strings.Contains(name, key) {
			continue
		}
		score := Similarity(name, key)
		if score < m.minSimilarity {
			continue
		}
		if !found || score > best.Similarity {
			best = Match{Key: key, Ref: m.entries[key], Similarity: score}
			found = true
		}
	}
	return best, found
}

// Similarity is (maxLen - editDistance) / maxLen over runes; 1.0 means
// identical.
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-levenshtein.ComputeDistance(a, b)) / float64(maxLen)
}
