// Package visibility computes which die records a caller may see.
//
// Anonymous callers see the public set only. An unlocked caller additionally
// sees every private record that decrypts under their passphrase; a record
// that fails is skipped and counted, never fatal. Plaintext private records
// ride along only once some sealed record has proven the passphrase.
package visibility

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/seal"
)

// AuthState is the caller's authentication state for resolution.
// The zero value is Anonymous.
type AuthState struct {
	passphrase string
}

// Anonymous returns the state of a caller without a passphrase.
func Anonymous() AuthState { return AuthState{} }

// Unlocked returns the state of a caller holding passphrase.
// An empty passphrase is the same as Anonymous.
func Unlocked(passphrase string) AuthState { return AuthState{passphrase: passphrase} }

// IsUnlocked reports whether a passphrase is held.
func (a AuthState) IsUnlocked() bool { return a.passphrase != "" }

// Passphrase returns the held passphrase, empty when anonymous.
func (a AuthState) Passphrase() string { return a.passphrase }

// String never includes the passphrase.
func (a AuthState) String() string {
	if a.IsUnlocked() {
		return "unlocked"
	}
	return "anonymous"
}

// VisibleSet is the projection of the catalog a caller may see.
type VisibleSet struct {
	// Dies holds public records first, then resolved private ones, in store order.
	Dies []models.Die `json:"dies"`
	// Protected counts private records hidden from an anonymous caller.
	Protected int `json:"protected"`
	// Unavailable counts private records that could not be resolved after unlock.
	Unavailable int `json:"unavailable"`
}

// Contains reports whether a die with id is visible.
func (v VisibleSet) Contains(id string) bool {
	for _, d := range v.Dies {
		if d.ID == id {
			return true
		}
	}
	return false
}

// openCacheSize bounds how many opened envelopes a Resolver remembers.
const openCacheSize = 4096

// Resolver applies the visibility policy to catalog snapshots. It remembers
// the outcome of opening each envelope under each passphrase, so repeated
// resolution of an unchanged catalog does not repeat key derivation.
type Resolver struct {
	opener seal.Opener
	log    *zap.Logger

	mu     sync.Mutex
	opened *lru.Cache
}

// NewResolver constructs a Resolver that decrypts with opener.
func NewResolver(opener seal.Opener, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{opener: opener, log: log, opened: lru.New(openCacheSize)}
}

// Resolve computes the visible set of cat for auth.
//
// Private records are shown only once the passphrase is proven, that is once
// at least one sealed record decrypts under it. Otherwise the public records
// are returned together with models.ErrWrongCredential. An id already seen
// earlier in the catalog is skipped. The catalog is never modified.
func (r *Resolver) Resolve(cat models.Catalog, auth AuthState) (VisibleSet, error) {
	out := VisibleSet{Dies: make([]models.Die, 0, len(cat.Public)+len(cat.Private))}
	seen := make(map[string]struct{}, len(cat.Public)+len(cat.Private))

	// A private tag in the public partition (e.g. a re-imported export) is
	// still private.
	var tagged []models.Die
	for _, d := range cat.Public {
		if d.Visibility == models.Private {
			tagged = append(tagged, d)
			continue
		}
		if _, dup := seen[d.ID]; dup {
			r.log.Warn("duplicate die id skipped", zap.String("id", d.ID))
			continue
		}
		seen[d.ID] = struct{}{}
		out.Dies = append(out.Dies, d)
	}

	hidden := make(map[string]struct{}, len(tagged)+len(cat.Private))
	for _, rec := range cat.Private {
		if _, dup := seen[rec.ID()]; !dup {
			hidden[rec.ID()] = struct{}{}
		}
	}
	for _, d := range tagged {
		if _, dup := seen[d.ID]; !dup {
			hidden[d.ID] = struct{}{}
		}
	}

	if !auth.IsUnlocked() {
		out.Protected = len(hidden)
		return out, nil
	}

	resolved := make([]models.Die, 0, len(hidden))
	var sealed, decrypted int
	for _, rec := range cat.Private {
		if d, ok := rec.Die(); ok {
			d.Visibility = models.Private
			resolved = append(resolved, d)
			continue
		}
		env, _ := rec.Envelope()
		sealed++
		res := r.open(env, auth.passphrase)
		if res.decrypted {
			decrypted++
		}
		if res.err != nil {
			if _, dup := seen[env.ID]; !dup {
				out.Unavailable++
			}
			r.log.Debug("private record skipped", zap.String("id", env.ID), zap.Error(res.err))
			continue
		}
		resolved = append(resolved, res.die)
	}
	resolved = append(resolved, tagged...)

	if decrypted == 0 && len(hidden) > 0 {
		r.log.Info("passphrase not proven by any sealed record",
			zap.Int("sealed", sealed), zap.Int("hidden", len(hidden)))
		return VisibleSet{
			Dies:        out.Dies,
			Unavailable: len(hidden),
		}, models.ErrWrongCredential
	}

	for _, d := range resolved {
		if _, dup := seen[d.ID]; dup {
			r.log.Debug("duplicate die id skipped", zap.String("id", d.ID))
			continue
		}
		seen[d.ID] = struct{}{}
		out.Dies = append(out.Dies, d)
	}
	if out.Unavailable > 0 {
		r.log.Info("private records unavailable", zap.Int("count", out.Unavailable))
	}
	return out, nil
}

// openResult is the remembered outcome of opening one envelope.
type openResult struct {
	die       models.Die
	decrypted bool
	err       error
}

// open decrypts and decodes env under passphrase, consulting the cache first.
func (r *Resolver) open(env models.Envelope, passphrase string) openResult {
	key := openKey(env, passphrase)
	r.mu.Lock()
	if v, ok := r.opened.Get(key); ok {
		r.mu.Unlock()
		return v.(openResult)
	}
	r.mu.Unlock()

	var res openResult
	plain, err := r.opener.Open(env.Ciphertext, passphrase)
	if err != nil {
		res.err = fmt.Errorf("%w: %w", models.ErrRecordDecrypt, err)
	} else {
		res.decrypted = true
		res.die, res.err = decodePrivate(env, plain)
	}

	r.mu.Lock()
	r.opened.Add(key, res)
	r.mu.Unlock()
	return res
}

// openKey identifies an envelope under a passphrase without retaining the
// passphrase itself.
func openKey(env models.Envelope, passphrase string) [sha256.Size]byte {
	h := sha256.New()
	for _, part := range []string{passphrase, env.ID, env.CreatedAt, env.Ciphertext} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	var key [sha256.Size]byte
	h.Sum(key[:0])
	return key
}

// decodePrivate parses and validates a decrypted payload. The id and tier
// always come from the envelope, never from the payload.
func decodePrivate(env models.Envelope, plain []byte) (models.Die, error) {
	var d models.Die
	if err := json.Unmarshal(plain, &d); err != nil {
		return models.Die{}, fmt.Errorf("%w: decode payload: %v", models.ErrRecordDecrypt, err)
	}
	d.ID = env.ID
	d.Visibility = models.Private
	if d.CreatedAt == "" {
		d.CreatedAt = env.CreatedAt
	}
	if err := d.Validate(); err != nil {
		return models.Die{}, fmt.Errorf("%w: %w", models.ErrRecordDecrypt, err)
	}
	return d, nil
}

// SealDie encrypts d under passphrase into its at-rest envelope.
func SealDie(s seal.Sealer, d models.Die, passphrase string) (models.Envelope, error) {
	if passphrase == "" {
		return models.Envelope{}, fmt.Errorf("%w: private records need an unlocked session", models.ErrForbidden)
	}
	d.Visibility = models.Private
	payload, err := json.Marshal(d)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("encode die: %w", err)
	}
	ct, err := s.Seal(payload, passphrase)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("seal die: %w", err)
	}
	return models.Envelope{
		ID:         d.ID,
		Ciphertext: ct,
		Visibility: models.Private,
		CreatedAt:  d.CreatedAt,
	}, nil
}
