// Package projection derives category-filtered views and aggregate counts
// from a visible set.
package projection

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/atinyakov/diecompare/internal/models"
)

// Stats are aggregates over a filtered set.
type Stats struct {
	Total      int `json:"total"`
	Public     int `json:"public"`
	Categories int `json:"categories"`
}

// Filter returns the dies whose category contains category, compared with
// Unicode case folding. An empty filter keeps every die. The result never
// aliases dies.
func Filter(dies []models.Die, category string) []models.Die {
	out := make([]models.Die, 0, len(dies))
	if strings.TrimSpace(category) == "" {
		return append(out, dies...)
	}

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(category))
	for _, d := range dies {
		if strings.Contains(fold.String(d.Category), needle) {
			out = append(out, d)
		}
	}
	return out
}

// Summarize counts dies, public dies and distinct categories. Categories
// are distinct after case folding; an empty category is not counted.
func Summarize(dies []models.Die) Stats {
	fold := cases.Fold()
	seen := make(map[string]struct{})
	s := Stats{Total: len(dies)}
	for _, d := range dies {
		if d.Visibility == models.Public {
			s.Public++
		}
		if c := strings.TrimSpace(d.Category); c != "" {
			seen[fold.String(c)] = struct{}{}
		}
	}
	s.Categories = len(seen)
	return s
}

// Apply filters dies and summarizes the result.
func Apply(dies []models.Die, category string) ([]models.Die, Stats) {
	filtered := Filter(dies, category)
	return filtered, Summarize(filtered)
}
