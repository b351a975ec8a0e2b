package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atinyakov/diecompare/internal/models"
)

// Credentials is an in-memory credential table used when no database is
// configured.
type Credentials struct {
	mu    sync.Mutex
	users map[string]models.Credential
}

// NewCredentials returns an empty table.
func NewCredentials() *Credentials {
	return &Credentials{users: make(map[string]models.Credential)}
}

// List returns every credential ordered by username.
func (c *Credentials) List(_ context.Context) ([]models.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Credential, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Get returns the credential for username or models.ErrNotFound.
func (c *Credentials) Get(_ context.Context, username string) (models.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[username]
	if !ok {
		return models.Credential{}, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	return u, nil
}

// Create adds cred; an existing username yields models.ErrDuplicate.
func (c *Credentials) Create(_ context.Context, cred models.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[cred.Username]; ok {
		return fmt.Errorf("user %q: %w", cred.Username, models.ErrDuplicate)
	}
	c.users[cred.Username] = cred
	return nil
}

// Delete removes username or returns models.ErrNotFound.
func (c *Credentials) Delete(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[username]; !ok {
		return fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	delete(c.users, username)
	return nil
}

// Count returns the number of credentials.
func (c *Credentials) Count(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users), nil
}
