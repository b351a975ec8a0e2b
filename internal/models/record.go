package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Record is one entry of the private set: either a plaintext Die or a
// sealed Envelope. The shape is decided once, when the record is decoded.
type Record struct {
	plain  *Die
	sealed *Envelope
}

// Plaintext wraps a Die as a Record.
func Plaintext(d Die) Record { return Record{plain: &d} }

// Sealed wraps an Envelope as a Record.
func Sealed(e Envelope) Record { return Record{sealed: &e} }

// Die returns the plaintext die, if the record holds one.
func (r Record) Die() (Die, bool) {
	if r.plain == nil {
		return Die{}, false
	}
	return *r.plain, true
}

// Envelope returns the sealed envelope, if the record holds one.
func (r Record) Envelope() (Envelope, bool) {
	if r.sealed == nil {
		return Envelope{}, false
	}
	return *r.sealed, true
}

// ID returns the identifier of whichever variant the record holds.
func (r Record) ID() string {
	switch {
	case r.plain != nil:
		return r.plain.ID
	case r.sealed != nil:
		return r.sealed.ID
	}
	return ""
}

// CreatedAt returns the creation timestamp of the held variant.
func (r Record) CreatedAt() string {
	switch {
	case r.plain != nil:
		return r.plain.CreatedAt
	case r.sealed != nil:
		return r.sealed.CreatedAt
	}
	return ""
}

// MarshalJSON encodes the held variant as-is.
func (r Record) MarshalJSON() ([]byte, error) {
	switch {
	case r.plain != nil:
		return json.Marshal(r.plain)
	case r.sealed != nil:
		return json.Marshal(r.sealed)
	}
	return []byte("null"), nil
}

// envelopeShape captures the keys that mark an object as sealed.
// "encrypted" is the key older feeds used for the ciphertext.
type envelopeShape struct {
	ID         string     `json:"id"`
	Ciphertext *string    `json:"ciphertext"`
	Encrypted  *string    `json:"encrypted"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  string     `json:"created_at"`
}

// UnmarshalJSON decides between the envelope and plaintext shapes.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("null record")
	}

	var probe envelopeShape
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	ct := probe.Ciphertext
	if ct == nil {
		ct = probe.Encrypted
	}
	if ct != nil {
		*r = Sealed(Envelope{
			ID:         probe.ID,
			Ciphertext: *ct,
			Visibility: Private,
			CreatedAt:  probe.CreatedAt,
		})
		return nil
	}

	var d Die
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	if d.Visibility == "" {
		d.Visibility = Private
	}
	*r = Plaintext(d)
	return nil
}
