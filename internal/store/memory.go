// Package store holds the in-memory Record Store fed by the JSON feeds.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/atinyakov/diecompare/internal/models"
)

// Memory is a Record Store kept in process memory.
//
// Feed loads and runtime mutations are kept apart. Each feed side (public and
// private) carries the stamp of the load that produced it; a load with an
// older stamp than the one held is discarded, so a slow load can never
// overwrite a newer one. Records added at runtime and feed records deleted at
// runtime form an overlay that no feed load replaces.
type Memory struct {
	mu             sync.Mutex
	seq            uint64
	public         []models.Die
	private        []models.Record
	publicVersion  uint64
	privateVersion uint64

	added   []models.Record
	removed map[string]struct{}
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		public:  []models.Die{},
		private: []models.Record{},
		removed: make(map[string]struct{}),
	}
}

// Begin returns a fresh stamp. Callers take a stamp before starting a load
// and pass it to ReplacePublic/ReplacePrivate when the load completes.
func (m *Memory) Begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

// ReplacePublic swaps in dies as the public feed if stamp is newer than the
// held one. It reports whether the set was applied.
func (m *Memory) ReplacePublic(stamp uint64, dies []models.Die) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stamp <= m.publicVersion {
		return false
	}
	m.public = append([]models.Die{}, dies...)
	m.publicVersion = stamp
	return true
}

// ReplacePrivate swaps in recs as the private feed if stamp is newer than
// the held one. It reports whether the set was applied.
func (m *Memory) ReplacePrivate(stamp uint64, recs []models.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stamp <= m.privateVersion {
		return false
	}
	m.private = append([]models.Record{}, recs...)
	m.privateVersion = stamp
	return true
}

// Versions returns the stamps of the feed loads currently held.
func (m *Memory) Versions() (public, private uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publicVersion, m.privateVersion
}

// Snapshot returns a copy of both sets: the feeds minus records deleted at
// runtime, then the records added at runtime. An added record shadows a
// feed record with the same id.
func (m *Memory) Snapshot(_ context.Context) (models.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shadow := make(map[string]struct{}, len(m.added))
	for _, rec := range m.added {
		shadow[rec.ID()] = struct{}{}
	}
	keep := func(id string) bool {
		_, gone := m.removed[id]
		_, over := shadow[id]
		return !gone && !over
	}

	cat := models.Catalog{
		Public:  make([]models.Die, 0, len(m.public)+len(m.added)),
		Private: make([]models.Record, 0, len(m.private)+len(m.added)),
	}
	for _, d := range m.public {
		if keep(d.ID) {
			cat.Public = append(cat.Public, d)
		}
	}
	for _, rec := range m.private {
		if keep(rec.ID()) {
			cat.Private = append(cat.Private, rec)
		}
	}
	for _, rec := range m.added {
		if d, ok := rec.Die(); ok && d.Visibility == models.Public {
			cat.Public = append(cat.Public, d)
			continue
		}
		cat.Private = append(cat.Private, rec)
	}
	return cat, nil
}

// Add stores rec in the runtime overlay. The id must be unused on both sides.
func (m *Memory) Add(_ context.Context, rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := rec.ID()
	if m.indexAdded(id) >= 0 || m.inFeed(id) {
		return fmt.Errorf("die %q: %w", id, models.ErrDuplicate)
	}
	m.added = append(m.added, rec)
	return nil
}

// Delete removes the record with id. A runtime addition is dropped; a feed
// record is remembered as deleted so later loads do not bring it back.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexAdded(id); i >= 0 {
		m.added = append(m.added[:i:i], m.added[i+1:]...)
		return nil
	}
	if m.inFeed(id) {
		m.removed[id] = struct{}{}
		return nil
	}
	return fmt.Errorf("die %q: %w", id, models.ErrNotFound)
}

func (m *Memory) indexAdded(id string) int {
	for i, r := range m.added {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// inFeed reports whether a loaded feed holds id and it was not deleted.
func (m *Memory) inFeed(id string) bool {
	if _, gone := m.removed[id]; gone {
		return false
	}
	for _, d := range m.public {
		if d.ID == id {
			return true
		}
	}
	for _, r := range m.private {
		if r.ID() == id {
			return true
		}
	}
	return false
}
