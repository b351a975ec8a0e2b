package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/models"
)

// MaxLifetime caps a token's validity regardless of activity.
const MaxLifetime = 24 * time.Hour

// Manager creates, looks up and expires sessions. Sessions live in memory;
// the token handed to the caller is an HS256 JWT whose subject is the
// session id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewManager constructs a Manager signing tokens with secret and evicting
// sessions idle for longer than ttl.
func NewManager(secret []byte, ttl time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// Create starts an anonymous session and returns it with its token.
func (m *Manager) Create() (*Session, string, error) {
	now := m.now()
	s := newSession(uuid.NewString(), now)

	claims := jwt.MapClaims{
		"sub": s.ID,
		"iat": now.Unix(),
		"exp": now.Add(MaxLifetime).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, token, nil
}

// Get validates token and returns its live session. An invalid token or an
// expired session yields models.ErrInvalidCredential.
func (m *Manager) Get(token string) (*Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, models.ErrInvalidCredential
	}
	id, err := parsed.Claims.GetSubject()
	if err != nil || id == "" {
		return nil, models.ErrInvalidCredential
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, models.ErrInvalidCredential
	}

	now := m.now()
	if now.Sub(s.idleSince()) > m.ttl {
		m.remove(id)
		return nil, models.ErrInvalidCredential
	}
	s.touch(now)
	return s, nil
}

// Delete ends the session with id. It is a no-op for unknown ids.
func (m *Manager) Delete(id string) {
	m.remove(id)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.end()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.end()
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is done. The returned
// channel is closed once the goroutine has exited.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.log.Info("expired sessions evicted", zap.Int("removed", n))
				}
			}
		}
	}()
	return done
}
