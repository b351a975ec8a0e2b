// Package layout turns a set of selected dies into an area-proportional
// comparison grid and the matching summary table.
//
// Glyphs are squares whose edge is proportional to sqrt(die area), so the
// drawn area scales linearly with the physical area. Cells have a fixed
// pitch sized for the largest glyph plus its label, so glyphs never overlap.
package layout

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/atinyakov/diecompare/internal/models"
)

const (
	// TargetEdge is the edge length, in pixels, of the largest glyph.
	TargetEdge = 300.0
	// Gutter is the spacing between neighbouring cells.
	Gutter = 40.0
	// LabelHeight is the room reserved under a glyph for its label.
	LabelHeight = 30.0
	// Margin is the offset of the grid from the canvas origin.
	Margin = 50.0
	// CellWidth is the horizontal pitch of the grid.
	CellWidth = TargetEdge + Gutter
	// CellHeight is the vertical pitch of the grid.
	CellHeight = TargetEdge + LabelHeight + Gutter
	// LabelBudget is the maximum label length in runes, ellipsis included.
	LabelBudget = 18
	// Ellipsis marks a truncated label.
	Ellipsis = "…"
	// NoTransistors is shown when the transistor count is unknown.
	NoTransistors = "N/A"
)

// Palette is cycled by sorted index to color glyphs.
var Palette = []string{"#ef4444", "#3b82f6", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899"}

// Placement is the computed position, size, color and labels of one glyph.
type Placement struct {
	Index      int     `json:"index"`
	ID         string  `json:"id"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Edge       float64 `json:"edge"`
	Color      string  `json:"color"`
	Label      string  `json:"label"`
	SizeLabel  string  `json:"size_label"`
	DieSizeMM2 float64 `json:"die_size_mm2"`
}

// Row is one line of the comparison table.
type Row struct {
	ID           string  `json:"id"`
	ChipName     string  `json:"chip_name"`
	Manufacturer string  `json:"manufacturer"`
	ProcessNode  string  `json:"process_node"`
	DieSizeMM2   float64 `json:"die_size_mm2"`
	Transistors  string  `json:"transistors"`
}

// Result is the full layout of one comparison.
type Result struct {
	Placements []Placement `json:"placements"`
	Table      []Row       `json:"table"`
	Columns    int         `json:"columns"`
	Rows       int         `json:"rows"`
	Scale      float64     `json:"scale"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
}

// Compute lays out selected. The input slice is not modified and its order
// does not affect the result.
//
// Sizes must have been validated on creation; a non-finite or non-positive
// size is reported as an error wrapping models.ErrInvalidRecord.
func Compute(selected []models.Die) (Result, error) {
	out := Result{Placements: []Placement{}, Table: []Row{}}
	if len(selected) == 0 {
		return out, nil
	}
	for _, d := range selected {
		if math.IsNaN(d.DieSizeMM2) || math.IsInf(d.DieSizeMM2, 0) || d.DieSizeMM2 <= 0 {
			return Result{}, fmt.Errorf("%w: die %q has die_size_mm2 %v", models.ErrInvalidRecord, d.ID, d.DieSizeMM2)
		}
	}

	sorted := append([]models.Die(nil), selected...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DieSizeMM2 != sorted[j].DieSizeMM2 {
			return sorted[i].DieSizeMM2 > sorted[j].DieSizeMM2
		}
		return sorted[i].ID < sorted[j].ID
	})

	n := len(sorted)
	cols := Columns(n)
	rows := (n + cols - 1) / cols
	scale := TargetEdge / math.Sqrt(sorted[0].DieSizeMM2)

	out.Columns = cols
	out.Rows = rows
	out.Scale = scale
	out.Width = 2*Margin + float64(cols)*CellWidth - Gutter
	out.Height = 2*Margin + float64(rows)*CellHeight - Gutter
	out.Placements = make([]Placement, 0, n)
	out.Table = make([]Row, 0, n)

	for i, d := range sorted {
		row, col := i/cols, i%cols
		out.Placements = append(out.Placements, Placement{
			Index:      i,
			ID:         d.ID,
			Row:        row,
			Col:        col,
			X:          Margin + float64(col)*CellWidth,
			Y:          Margin + float64(row)*CellHeight,
			Edge:       math.Sqrt(d.DieSizeMM2) * scale,
			Color:      Palette[i%len(Palette)],
			Label:      Truncate(d.ChipName, LabelBudget),
			SizeLabel:  strconv.FormatFloat(d.DieSizeMM2, 'f', -1, 64) + "mm²",
			DieSizeMM2: d.DieSizeMM2,
		})
		out.Table = append(out.Table, Row{
			ID:           d.ID,
			ChipName:     d.ChipName,
			Manufacturer: d.Manufacturer,
			ProcessNode:  d.ProcessNode,
			DieSizeMM2:   d.DieSizeMM2,
			Transistors:  FormatTransistors(d.TransistorCount),
		})
	}
	return out, nil
}

// Columns returns the grid width for n glyphs: n itself up to two,
// otherwise ceil(sqrt(n)).
func Columns(n int) int {
	if n <= 2 {
		return n
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Truncate shortens s to at most budget runes, the last being Ellipsis.
func Truncate(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget-1]) + Ellipsis
}

// FormatTransistors renders a count in billions with one decimal, e.g. "80.0B".
func FormatTransistors(count *int64) string {
	if count == nil {
		return NoTransistors
	}
	return fmt.Sprintf("%.1fB", float64(*count)/1e9)
}
