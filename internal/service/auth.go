// Package service provides the catalog and credential business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/diecompare/internal/models"
)

// CredentialRepository defines the persistence operations
// required by the authentication service.
type CredentialRepository interface {
	// List returns every credential ordered by username.
	List(ctx context.Context) ([]models.Credential, error)
	// Get returns the credential for username or models.ErrNotFound.
	Get(ctx context.Context, username string) (models.Credential, error)
	// Create stores a new credential or returns models.ErrDuplicate.
	Create(ctx context.Context, c models.Credential) error
	// Delete removes a credential or returns models.ErrNotFound.
	Delete(ctx context.Context, username string) error
	// Count returns the number of stored credentials.
	Count(ctx context.Context) (int, error)
}

// dummyHash is compared against when the user does not exist so that a
// login for an unknown user costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("diecompare-dummy-password"), bcrypt.DefaultCost)

// AuthService checks logins and manages credentials.
type AuthService struct {
	repo CredentialRepository
	cost int
	now  func() time.Time
	log  *zap.Logger
}

// NewAuthService constructs an AuthService using the provided repository.
func NewAuthService(repo CredentialRepository, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, cost: bcrypt.DefaultCost, now: time.Now, log: log}
}

// HashPassword returns the bcrypt hash of password at cost
// (bcrypt.DefaultCost when cost is zero).
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", &models.InvalidRecordError{Field: "password", Reason: "is required"}
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks username and password. Any mismatch, including an unknown
// user, yields models.ErrInvalidCredential.
func (s *AuthService) Login(ctx context.Context, username, password string) (models.Credential, error) {
	c, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.log.Info("login rejected", zap.String("user", username))
			return models.Credential{}, models.ErrInvalidCredential
		}
		return models.Credential{}, fmt.Errorf("load credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("user", username))
		return models.Credential{}, models.ErrInvalidCredential
	}
	return c, nil
}

// List returns every credential.
func (s *AuthService) List(ctx context.Context) ([]models.Credential, error) {
	return s.repo.List(ctx)
}

// AddCredential hashes password and stores a new account.
func (s *AuthService) AddCredential(ctx context.Context, username, name, password string) (models.Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Credential{}, &models.InvalidRecordError{Field: "username", Reason: "is required"}
	}
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return models.Credential{}, err
	}

	c := models.Credential{
		Username:     username,
		Name:         strings.TrimSpace(name),
		PasswordHash: []byte(hash),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return models.Credential{}, err
	}
	s.log.Info("credential created", zap.String("user", username))
	return c, nil
}

// DeleteCredential removes username. Callers cannot delete their own
// account.
func (s *AuthService) DeleteCredential(ctx context.Context, actor, username string) error {
	if actor == username {
		return fmt.Errorf("%w: cannot delete the signed-in account", models.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}
	s.log.Info("credential deleted", zap.String("user", username), zap.String("by", actor))
	return nil
}

// Bootstrap stores username with an existing bcrypt hash when no
// credential exists yet. It reports whether the account was created.
func (s *AuthService) Bootstrap(ctx context.Context, username, hash string) (bool, error) {
	if username == "" {
		return false, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, fmt.Errorf("bootstrap password hash: %w", err)
	}

	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	err = s.repo.Create(ctx, models.Credential{
		Username:     username,
		Name:         username,
		PasswordHash: []byte(hash),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false, err
	}
	s.log.Info("bootstrap credential created", zap.String("user", username))
	return true, nil
}
