package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func validDie() Die {
	return Die{
		ID:              "d1",
		ChipName:        "H100",
		Manufacturer:    "NVIDIA",
		ProcessNode:     "5nm",
		DieSizeMM2:      814,
		TransistorCount: int64p(80_000_000_000),
		Category:        "GPU",
		Visibility:      Public,
	}
}

func TestDieValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *Die)
		wantField string
	}{
		{"valid", func(d *Die) {}, ""},
		{"missing chip name", func(d *Die) { d.ChipName = "  " }, "chip_name"},
		{"missing manufacturer", func(d *Die) { d.Manufacturer = "" }, "manufacturer"},
		{"negative size", func(d *Die) { d.DieSizeMM2 = -5 }, "die_size_mm2"},
		{"zero size", func(d *Die) { d.DieSizeMM2 = 0 }, "die_size_mm2"},
		{"NaN size", func(d *Die) { d.DieSizeMM2 = math.NaN() }, "die_size_mm2"},
		{"infinite size", func(d *Die) { d.DieSizeMM2 = math.Inf(1) }, "die_size_mm2"},
		{"zero transistors", func(d *Die) { d.TransistorCount = int64p(0) }, "transistor_count"},
		{"unknown tier", func(d *Die) { d.Visibility = "secret" }, "visibility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDie()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidRecord)
			var ire *InvalidRecordError
			require.True(t, errors.As(err, &ire))
			assert.Equal(t, tt.wantField, ire.Field)
		})
	}
}

func TestNewDie_DefaultsToPublic(t *testing.T) {
	d := NewDie{ChipName: " M4 ", Manufacturer: "Apple", DieSizeMM2: 150}.Die("id-1", "2024-05-01T00:00:00Z")
	assert.Equal(t, Public, d.Visibility)
	assert.Equal(t, "M4", d.ChipName)
	assert.Equal(t, "id-1", d.ID)
	assert.Equal(t, "2024-05-01T00:00:00Z", d.CreatedAt)
}

func TestRecordUnmarshal_Shapes(t *testing.T) {
	input := `[
		{"id":"e1","ciphertext":"AAAA","visibility":"private"},
		{"id":"e2","encrypted":"BBBB","is_public":false},
		{"id":"p1","chip_name":"X","manufacturer":"Y","die_size_mm2":10,"category":"CPU"}
	]`
	var recs []Record
	require.NoError(t, json.Unmarshal([]byte(input), &recs))
	require.Len(t, recs, 3)

	env, ok := recs[0].Envelope()
	require.True(t, ok)
	assert.Equal(t, "AAAA", env.Ciphertext)

	env, ok = recs[1].Envelope()
	require.True(t, ok)
	assert.Equal(t, "BBBB", env.Ciphertext)
	assert.Equal(t, Private, env.Visibility)

	d, ok := recs[2].Die()
	require.True(t, ok)
	assert.Equal(t, Private, d.Visibility)
	assert.Equal(t, "p1", recs[2].ID())

	_, ok = recs[2].Envelope()
	assert.False(t, ok)
}

func TestRecordMarshal_RoundTrip(t *testing.T) {
	recs := []Record{
		Sealed(Envelope{ID: "e1", Ciphertext: "AAAA", Visibility: Private}),
		Plaintext(validDie()),
	}
	b, err := json.Marshal(recs)
	require.NoError(t, err)

	var back []Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, recs, back)
}

func TestRecordUnmarshal_Null(t *testing.T) {
	var r Record
	assert.Error(t, json.Unmarshal([]byte("null"), &r))
}
