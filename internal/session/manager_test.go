package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/selection"
	"github.com/atinyakov/diecompare/internal/visibility"
)

var secret = []byte("test-secret")

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager(ttl time.Duration) (*Manager, *clock) {
	c := &clock{t: time.Now()}
	m := NewManager(secret, ttl, nil)
	m.now = c.Now
	return m, c
}

func TestManager_CreateAndGet(t *testing.T) {
	m, _ := newTestManager(time.Minute)

	s, token, err := m.Create()
	require.NoError(t, err)
	assert.False(t, s.Auth().IsUnlocked())
	assert.Equal(t, selection.Idle, s.State())

	got, err := m.Get(token)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
}

func TestManager_RejectsBadTokens(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	_, token, err := m.Create()
	require.NoError(t, err)

	other, _ := newTestManager(time.Minute)
	other.secret = []byte("another-secret")
	_, foreign, err := other.Create()
	require.NoError(t, err)

	unknown, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "nope"}).SignedString(secret)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"tampered":       token + "x",
		"foreign secret": foreign,
		"unknown id":     unknown,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Get(tok)
			assert.ErrorIs(t, err, models.ErrInvalidCredential)
		})
	}
}

func TestManager_IdleExpiry(t *testing.T) {
	m, c := newTestManager(time.Minute)
	_, token, err := m.Create()
	require.NoError(t, err)

	c.Advance(50 * time.Second)
	_, err = m.Get(token)
	require.NoError(t, err, "activity inside the TTL keeps the session")

	c.Advance(50 * time.Second)
	_, err = m.Get(token)
	require.NoError(t, err, "last access was 50s ago")

	c.Advance(2 * time.Minute)
	_, err = m.Get(token)
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
	assert.Zero(t, m.Len())
}

func TestManager_DeleteEndsSession(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, token, err := m.Create()
	require.NoError(t, err)
	s.SignIn("admin")
	s.Unlock(visibility.Unlocked("pw"))

	m.Delete(s.ID)

	_, err = m.Get(token)
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
	assert.Empty(t, s.User())
	assert.False(t, s.Auth().IsUnlocked())
}

func TestManager_Sweep(t *testing.T) {
	m, c := newTestManager(time.Minute)
	_, stale, err := m.Create()
	require.NoError(t, err)
	c.Advance(45 * time.Second)
	_, fresh, err := m.Create()
	require.NoError(t, err)
	c.Advance(30 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	_, err = m.Get(stale)
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
	_, err = m.Get(fresh)
	assert.NoError(t, err)
}

func TestManager_SweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, c := newTestManager(time.Minute)
	_, _, err := m.Create()
	require.NoError(t, err)
	c.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := m.StartSweeper(ctx, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

type ids map[string]bool

func (v ids) Contains(id string) bool { return v[id] }

func TestSession_LockPrunesSelection(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, _, err := m.Create()
	require.NoError(t, err)
	s.Unlock(visibility.Unlocked("pw"))

	unlocked := ids{"pub": true, "priv": true}
	assert.True(t, s.Toggle("pub", unlocked))
	assert.True(t, s.Toggle("priv", unlocked))
	assert.Equal(t, selection.Comparing, s.State())

	pruned := s.Lock(ids{"pub": true})
	assert.Equal(t, 1, pruned)
	assert.Equal(t, []string{"pub"}, s.Selection())
	assert.False(t, s.Auth().IsUnlocked())

	s.Clear()
	assert.Equal(t, selection.Idle, s.State())
}

func TestSession_ConcurrentToggles(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, _, err := m.Create()
	require.NoError(t, err)
	visible := ids{"a": true}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Toggle("a", visible)
		}()
	}
	wg.Wait()
	assert.Equal(t, selection.Idle, s.State(), "an even number of toggles is the identity")
}
