package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
)

type Category string

const (
	CategoryOpening     Category = "opening"
	CategoryBooking     Category = "booking"
	CategoryTransaction Category = "transaction"

	// LegacyKeywordsField is the pre-category upload shape {"keywords": [...]},
	// which always targeted the opening set.
	LegacyKeywordsField = "keywords"
)

var Categories = []Category{CategoryOpening, CategoryBooking, CategoryTransaction}

var (
	ErrInvalidCategory = errors.New("invalid_category")
	ErrEmptyRequest    = errors.New("empty_keyword_request")
)

func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryOpening:
		return CategoryOpening, nil
	case CategoryBooking:
		return CategoryBooking, nil
	case CategoryTransaction:
		return CategoryTransaction, nil
	default:
		return "", ErrInvalidCategory
	}
}

// Set is a normalized keyword set in match order: longest first, ties broken
// lexicographically. A fixed order makes the matched keyword deterministic when
// several keywords occur in one message.
type Set []string

// NewSet lowercases and trims words, drops empties and duplicates, and orders the result.
func NewSet(words []string) Set {
	seen := make(map[string]struct{}, len(words))
	out := make(Set, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Match returns the first keyword of the set contained in text, case-insensitively.
func (s Set) Match(text string) (string, bool) {
	if len(s) == 0 || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range s {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// Snapshot is the keyword sets read once at the start of a classification pass.
type Snapshot map[Category]Set

func (s Snapshot) Get(c Category) Set {
	if s == nil {
		return nil
	}
	return s[c]
}

type Store interface {
	Members(ctx context.Context, category Category) ([]string, error)
	Replace(ctx context.Context, category Category, words []string) error
}

type Service interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Sync(ctx context.Context, req SyncRequest) (SyncResult, error)
}

// SyncRequest replaces each named category wholesale. Categories that are not
// named are left untouched.
type SyncRequest map[Category][]string

type SyncResult struct {
	Counts map[Category]int `json:"counts"`
}
