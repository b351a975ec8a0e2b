package service_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/service"
)

type mockCredentialRepo struct {
	ListFunc   func(ctx context.Context) ([]models.Credential, error)
	GetFunc    func(ctx context.Context, username string) (models.Credential, error)
	CreateFunc func(ctx context.Context, c models.Credential) error
	DeleteFunc func(ctx context.Context, username string) error
	CountFunc  func(ctx context.Context) (int, error)
}

func (m *mockCredentialRepo) List(ctx context.Context) ([]models.Credential, error) {
	return m.ListFunc(ctx)
}
func (m *mockCredentialRepo) Get(ctx context.Context, username string) (models.Credential, error) {
	return m.GetFunc(ctx, username)
}
func (m *mockCredentialRepo) Create(ctx context.Context, c models.Credential) error {
	return m.CreateFunc(ctx, c)
}
func (m *mockCredentialRepo) Delete(ctx context.Context, username string) error {
	return m.DeleteFunc(ctx, username)
}
func (m *mockCredentialRepo) Count(ctx context.Context) (int, error) {
	return m.CountFunc(ctx)
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestLogin(t *testing.T) {
	hash := mustHash(t, "s3cret")
	repo := &mockCredentialRepo{
		GetFunc: func(_ context.Context, username string) (models.Credential, error) {
			if username == "admin" {
				return models.Credential{Username: "admin", PasswordHash: hash}, nil
			}
			if username == "broken" {
				return models.Credential{}, errors.New("db down")
			}
			return models.Credential{}, models.ErrNotFound
		},
	}
	svc := service.NewAuthService(repo, nil)

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
	}{
		{"correct", "admin", "s3cret", nil},
		{"wrong password", "admin", "nope", models.ErrInvalidCredential},
		{"unknown user", "ghost", "s3cret", models.ErrInvalidCredential},
		{"empty password", "admin", "", models.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := svc.Login(context.Background(), tt.user, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login error = %v; want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && c.Username != "admin" {
				t.Errorf("Login user = %q", c.Username)
			}
		})
	}

	_, err := svc.Login(context.Background(), "broken", "x")
	if err == nil || errors.Is(err, models.ErrInvalidCredential) {
		t.Errorf("repository failure should not look like a bad password: %v", err)
	}
}

func TestAddCredential(t *testing.T) {
	var stored models.Credential
	repo := &mockCredentialRepo{
		CreateFunc: func(_ context.Context, c models.Credential) error {
			if c.Username == "taken" {
				return models.ErrDuplicate
			}
			stored = c
			return nil
		},
	}
	svc := service.NewAuthService(repo, nil)

	c, err := svc.AddCredential(context.Background(), "  amy ", "Amy", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Username != "amy" || stored.Username != "amy" {
		t.Errorf("username not trimmed: %q", c.Username)
	}
	if bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("pw")) != nil {
		t.Error("stored hash does not match password")
	}
	if string(stored.PasswordHash) == "pw" {
		t.Error("plaintext password stored")
	}

	if _, err := svc.AddCredential(context.Background(), "taken", "", "pw"); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("duplicate error = %v", err)
	}
	if _, err := svc.AddCredential(context.Background(), "", "", "pw"); !errors.Is(err, models.ErrInvalidRecord) {
		t.Errorf("empty username error = %v", err)
	}
	if _, err := svc.AddCredential(context.Background(), "bob", "", ""); !errors.Is(err, models.ErrInvalidRecord) {
		t.Errorf("empty password error = %v", err)
	}
}

func TestDeleteCredential(t *testing.T) {
	deleted := ""
	repo := &mockCredentialRepo{
		DeleteFunc: func(_ context.Context, username string) error {
			deleted = username
			return nil
		},
	}
	svc := service.NewAuthService(repo, nil)

	if err := svc.DeleteCredential(context.Background(), "admin", "admin"); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("self delete error = %v; want ErrForbidden", err)
	}
	if deleted != "" {
		t.Error("self delete reached the repository")
	}
	if err := svc.DeleteCredential(context.Background(), "admin", "bob"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if deleted != "bob" {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestBootstrap(t *testing.T) {
	hash := string(mustHash(t, "pw"))

	tests := []struct {
		name    string
		user    string
		hash    string
		count   int
		want    bool
		wantErr bool
	}{
		{"empty table", "admin", hash, 0, true, false},
		{"existing accounts", "admin", hash, 2, false, false},
		{"not configured", "", "", 0, false, false},
		{"not a bcrypt hash", "admin", "plaintext", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockCredentialRepo{
				CountFunc: func(context.Context) (int, error) { return tt.count, nil },
				CreateFunc: func(_ context.Context, c models.Credential) error {
					created = true
					if string(c.PasswordHash) != tt.hash {
						t.Errorf("hash rewritten")
					}
					return nil
				},
			}
			got, err := service.NewAuthService(repo, nil).Bootstrap(context.Background(), tt.user, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Bootstrap error = %v; wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || created != tt.want {
				t.Errorf("Bootstrap = %v (created %v); want %v", got, created, tt.want)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	h, err := service.HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")) != nil {
		t.Error("hash does not verify")
	}
	if _, err := service.HashPassword("", 0); !errors.Is(err, models.ErrInvalidRecord) {
		t.Errorf("empty password error = %v", err)
	}
}
