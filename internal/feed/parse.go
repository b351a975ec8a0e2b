// Package feed loads the public and private JSON feeds into the Record
// Store and renders the visible set back into the same format.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/atinyakov/diecompare/internal/models"
)

// idNamespace scopes the name-based ids given to feed entries without one.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("diecompare:die"))

// DeriveID returns the stable id for a die that arrived without one. The
// same manufacturer, chip name and process node always give the same id.
func DeriveID(d models.Die) string {
	name := strings.ToLower(strings.Join([]string{
		strings.TrimSpace(d.Manufacturer),
		strings.TrimSpace(d.ChipName),
		strings.TrimSpace(d.ProcessNode),
	}, "/"))
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// ParseDies decodes a public feed. Entries without an id get DeriveID,
// entries without a visibility are public. Entries that fail to decode or
// validate, or repeat an earlier id, are skipped and counted. A document
// that is not a JSON array fails with models.ErrLoadFailure.
func ParseDies(data []byte) ([]models.Die, int, error) {
	raws, err := splitArray(data)
	if err != nil {
		return nil, 0, err
	}

	dies := make([]models.Die, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	skipped := 0
	for _, raw := range raws {
		var d models.Die
		if err := json.Unmarshal(raw, &d); err != nil {
			skipped++
			continue
		}
		if d.Visibility == "" {
			d.Visibility = models.Public
		}
		if d.ID == "" {
			d.ID = DeriveID(d)
		}
		if _, dup := seen[d.ID]; dup || d.Validate() != nil {
			skipped++
			continue
		}
		seen[d.ID] = struct{}{}
		dies = append(dies, d)
	}
	return dies, skipped, nil
}

// ParsePrivate decodes a private feed of envelopes and legacy plaintext
// dies. Envelopes need an id and a ciphertext; plaintext dies are
// validated like public ones.
func ParsePrivate(data []byte) ([]models.Record, int, error) {
	raws, err := splitArray(data)
	if err != nil {
		return nil, 0, err
	}

	recs := make([]models.Record, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	skipped := 0
	for _, raw := range raws {
		var rec models.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		if env, ok := rec.Envelope(); ok {
			if env.ID == "" || env.Ciphertext == "" {
				skipped++
				continue
			}
		}
		if d, ok := rec.Die(); ok {
			if d.ID == "" {
				d.ID = DeriveID(d)
			}
			if d.Validate() != nil {
				skipped++
				continue
			}
			rec = models.Plaintext(d)
		}
		if _, dup := seen[rec.ID()]; dup {
			skipped++
			continue
		}
		seen[rec.ID()] = struct{}{}
		recs = append(recs, rec)
	}
	return recs, skipped, nil
}

// Export renders dies as a two-space indented JSON array that ParseDies
// reads back unchanged.
func Export(dies []models.Die) ([]byte, error) {
	if dies == nil {
		dies = []models.Die{}
	}
	return json.MarshalIndent(dies, "", "  ")
}

func splitArray(data []byte) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrLoadFailure, err)
	}
	return raws, nil
}
