package library

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datalib/internal/models"
)

// SortKey orders a view.
type SortKey string

// Supported orderings.
const (
	SortNewest  SortKey = "newest"
	SortOldest  SortKey = "oldest"
	SortTitle   SortKey = "title"
	SortUpdated SortKey = "updated"
)

// SortKeys lists the supported orderings.
var SortKeys = []SortKey{SortNewest, SortOldest, SortTitle, SortUpdated}

// ParseSort parses a sort key case-insensitively. An empty string means
// newest.
func ParseSort(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return SortNewest, nil
	}
	if !slices.Contains(SortKeys, k) {
		return "", fmt.Errorf("unknown sort %q", s)
	}
	return k, nil
}

// FilterState holds the criteria used to derive a view from the cache.
type FilterState struct {
	Search string
	Type   models.DataType
	SortBy SortKey
}

// DefaultFilter returns the initial filter: context items, newest first.
func DefaultFilter() FilterState {
	return FilterState{Type: models.TypeContext, SortBy: SortNewest}
}

// Normalize fills empty fields with their defaults.
func (f FilterState) Normalize() FilterState {
	if f.Type == "" {
		f.Type = models.TypeContext
	}
	if f.SortBy == "" {
		f.SortBy = SortNewest
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Validate checks the type and sort key.
func (f FilterState) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.Required,
			validation.In(models.TypeContext, models.TypeIssue, models.TypeInquiry, models.TypeProduct)),
		validation.Field(&f.SortBy, validation.Required, validation.In(SortNewest, SortOldest, SortTitle, SortUpdated)),
	)
}

// View returns the items of f.Type whose title, content or description
// contains f.Search case-insensitively, ordered by f.SortBy. Ties are broken
// by id ascending. items is not modified.
func View(items []models.DataItem, f FilterState) []models.DataItem {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.DataItem, 0, len(items))
	for _, it := range items {
		if it.Type != f.Type {
			continue
		}
		if needle != "" && !matches(it, needle) {
			continue
		}
		out = append(out, it)
	}
	slices.SortFunc(out, compareBy(f.SortBy))
	return out
}

func matches(it models.DataItem, needle string) bool {
	if strings.Contains(strings.ToLower(it.Title), needle) {
		return true
	}
	if it.Content != nil && strings.Contains(strings.ToLower(*it.Content), needle) {
		return true
	}
	return it.Description != nil && strings.Contains(strings.ToLower(*it.Description), needle)
}

func compareBy(key SortKey) func(a, b models.DataItem) int {
	var primary func(a, b models.DataItem) int
	switch key {
	case SortOldest:
		primary = func(a, b models.DataItem) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortTitle:
		primary = func(a, b models.DataItem) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortUpdated:
		primary = func(a, b models.DataItem) int { return b.UpdatedAt.Compare(a.UpdatedAt) }
	default:
		primary = func(a, b models.DataItem) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	return func(a, b models.DataItem) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}
