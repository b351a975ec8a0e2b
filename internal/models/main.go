// Package models defines the core data structures for die records,
// their sealed at-rest form, and login credentials.
package models

import (
	"fmt"
	"math"
	"strings"
)

// Visibility is the access tier of a die record.
type Visibility string

const (
	// Public records are visible to every caller.
	Public Visibility = "public"
	// Private records are stored sealed and visible only after unlock.
	Private Visibility = "private"
)

// Die is a catalog entry describing one semiconductor die.
type Die struct {
	// ID is the unique identifier assigned at creation.
	ID string `json:"id"`
	// ChipName is the marketing name of the chip.
	ChipName string `json:"chip_name"`
	// Manufacturer is the company that designed the chip.
	Manufacturer string `json:"manufacturer"`
	// ProcessNode is the fabrication process label, e.g. "5nm".
	ProcessNode string `json:"process_node"`
	// DieSizeMM2 is the die area in square millimetres.
	DieSizeMM2 float64 `json:"die_size_mm2"`
	// TransistorCount is optional; nil when unknown.
	TransistorCount *int64 `json:"transistor_count,omitempty"`
	// ReleaseDate is display-only.
	ReleaseDate string `json:"release_date,omitempty"`
	// Category groups dies, e.g. "CPU", "GPU", "SoC".
	Category string `json:"category"`
	// Notes holds optional free text about the source of the figures.
	Notes string `json:"notes,omitempty"`
	// Visibility is the access tier.
	Visibility Visibility `json:"visibility"`
	// CreatedAt is the RFC 3339 creation timestamp.
	CreatedAt string `json:"created_at,omitempty"`
}

// NewDie is the caller-supplied part of a Die: everything except the
// identifier and timestamp, which are assigned on creation.
type NewDie struct {
	ChipName        string     `json:"chip_name"`
	Manufacturer    string     `json:"manufacturer"`
	ProcessNode     string     `json:"process_node"`
	DieSizeMM2      float64    `json:"die_size_mm2"`
	TransistorCount *int64     `json:"transistor_count,omitempty"`
	ReleaseDate     string     `json:"release_date,omitempty"`
	Category        string     `json:"category"`
	Notes           string     `json:"notes,omitempty"`
	Visibility      Visibility `json:"visibility"`
}

// Die builds a Die with the given id and timestamp.
func (n NewDie) Die(id, createdAt string) Die {
	vis := n.Visibility
	if vis == "" {
		vis = Public
	}
	return Die{
		ID:              id,
		ChipName:        strings.TrimSpace(n.ChipName),
		Manufacturer:    strings.TrimSpace(n.Manufacturer),
		ProcessNode:     strings.TrimSpace(n.ProcessNode),
		DieSizeMM2:      n.DieSizeMM2,
		TransistorCount: n.TransistorCount,
		ReleaseDate:     n.ReleaseDate,
		Category:        strings.TrimSpace(n.Category),
		Notes:           n.Notes,
		Visibility:      vis,
		CreatedAt:       createdAt,
	}
}

// Validate checks the creation-time invariants of a die.
// The returned error wraps ErrInvalidRecord and names the failing field.
func (d Die) Validate() error {
	switch {
	case strings.TrimSpace(d.ChipName) == "":
		return invalid("chip_name", "is required")
	case strings.TrimSpace(d.Manufacturer) == "":
		return invalid("manufacturer", "is required")
	case math.IsNaN(d.DieSizeMM2) || math.IsInf(d.DieSizeMM2, 0):
		return invalid("die_size_mm2", "must be finite")
	case d.DieSizeMM2 <= 0:
		return invalid("die_size_mm2", fmt.Sprintf("must be positive, got %g", d.DieSizeMM2))
	case d.TransistorCount != nil && *d.TransistorCount <= 0:
		return invalid("transistor_count", "must be positive when set")
	case d.Visibility != Public && d.Visibility != Private:
		return invalid("visibility", fmt.Sprintf("unknown tier %q", d.Visibility))
	}
	return nil
}

// Envelope is the at-rest form of a private die: only the identifier
// and the ciphertext of the JSON-encoded Die are stored.
type Envelope struct {
	ID         string     `json:"id"`
	Ciphertext string     `json:"ciphertext"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  string     `json:"created_at,omitempty"`
}

// Catalog is a snapshot of the Record Store, partitioned by tier.
type Catalog struct {
	Public  []Die
	Private []Record
}

// Credential is a login account; only the bcrypt hash of the password is kept.
type Credential struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	PasswordHash []byte `json:"-"`
	CreatedAt    string `json:"created_at"`
}
