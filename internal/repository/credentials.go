package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/diecompare/internal/models"
)

// SQLCredentialRepository stores login accounts in the credentials table.
type SQLCredentialRepository struct {
	DB *sql.DB
}

// NewSQLCredentialRepository creates a SQLCredentialRepository.
func NewSQLCredentialRepository(db *sql.DB) *SQLCredentialRepository {
	return &SQLCredentialRepository{DB: db}
}

// List returns every credential ordered by username.
func (r *SQLCredentialRepository) List(ctx context.Context) ([]models.Credential, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT username, name, password_hash, created_at FROM credentials ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	creds := []models.Credential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return creds, nil
}

// Get returns the credential for username or models.ErrNotFound.
func (r *SQLCredentialRepository) Get(ctx context.Context, username string) (models.Credential, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT username, name, password_hash, created_at FROM credentials WHERE username = $1`, username)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	return c, err
}

// Create inserts c; an existing username yields models.ErrDuplicate.
func (r *SQLCredentialRepository) Create(ctx context.Context, c models.Credential) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO credentials (username, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		c.Username, c.Name, string(c.PasswordHash), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", c.Username, models.ErrDuplicate)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// Delete removes username; a missing user yields models.ErrNotFound.
func (r *SQLCredentialRepository) Delete(ctx context.Context, username string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM credentials WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored credentials.
func (r *SQLCredentialRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (models.Credential, error) {
	var (
		c    models.Credential
		hash string
	)
	if err := s.Scan(&c.Username, &c.Name, &hash, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Credential{}, err
		}
		return models.Credential{}, fmt.Errorf("scan: %w", err)
	}
	c.PasswordHash = []byte(hash)
	return c, nil
}
