// Package session keeps per-caller state: the authentication state used
// for visibility resolution, the signed-in account and the comparison
// selection.
package session

import (
	"sync"
	"time"

	"github.com/atinyakov/diecompare/internal/selection"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// Session is the state of one caller. It is safe for concurrent use.
type Session struct {
	// ID is the opaque identifier carried in the session token.
	ID string

	mu       sync.Mutex
	auth     visibility.AuthState
	user     string
	selector *selection.Selector
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, selector: selection.New(), lastSeen: now}
}

// Auth returns the current authentication state.
func (s *Session) Auth() visibility.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// User returns the signed-in username, empty when nobody is signed in.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SignIn records username as the signed-in account.
func (s *Session) SignIn(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = username
}

// Unlock switches to auth after the caller has verified it.
func (s *Session) Unlock(auth visibility.AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// Lock drops the passphrase and prunes selected ids that are no longer in
// visible. It returns how many ids were pruned.
func (s *Session) Lock(visible selection.Membership) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = visibility.Anonymous()
	return s.selector.Retain(visible)
}

// Toggle flips id in the selection; see selection.Selector.Toggle.
func (s *Session) Toggle(id string, visible selection.Membership) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Toggle(id, visible)
}

// Clear empties the selection.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selector.Clear()
}

// Retain drops selected ids missing from visible.
func (s *Session) Retain(visible selection.Membership) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Retain(visible)
}

// Selection returns the selected ids in insertion order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.IDs()
}

// State returns the selector state.
func (s *Session) State() selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.State()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// end clears everything the session holds.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = visibility.Anonymous()
	s.user = ""
	s.selector.Clear()
}
