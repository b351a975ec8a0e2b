// Package repository provides SQL persistence for die records and login
// credentials. The queries run unchanged on PostgreSQL and SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/diecompare/internal/models"
)

// SQLDieRepository stores die records in the dies table.
type SQLDieRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewSQLDieRepository creates a SQLDieRepository using the provided *sql.DB.
func NewSQLDieRepository(db *sql.DB) *SQLDieRepository {
	return &SQLDieRepository{DB: db}
}

const selectDies = `
		SELECT id, visibility, chip_name, manufacturer, process_node, category,
		       die_size_mm2, transistor_count, release_date, notes, ciphertext, created_at
		  FROM dies
		 ORDER BY created_at, id`

const insertDie = `
		INSERT INTO dies (id, visibility, chip_name, manufacturer, process_node, category,
		                  die_size_mm2, transistor_count, release_date, notes, ciphertext, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Snapshot reads every row. Rows with a ciphertext become sealed private
// records; private rows without one are legacy plaintext records.
func (r *SQLDieRepository) Snapshot(ctx context.Context) (models.Catalog, error) {
	rows, err := r.DB.QueryContext(ctx, selectDies)
	if err != nil {
		return models.Catalog{}, fmt.Errorf("Snapshot: %w", err)
	}
	defer rows.Close()

	cat := models.Catalog{Public: []models.Die{}, Private: []models.Record{}}
	for rows.Next() {
		var (
			d          models.Die
			count      sql.NullInt64
			ciphertext sql.NullString
		)
		if err := rows.Scan(
			&d.ID, &d.Visibility, &d.ChipName, &d.Manufacturer, &d.ProcessNode, &d.Category,
			&d.DieSizeMM2, &count, &d.ReleaseDate, &d.Notes, &ciphertext, &d.CreatedAt,
		); err != nil {
			return models.Catalog{}, fmt.Errorf("scan: %w", err)
		}

		switch {
		case ciphertext.Valid:
			cat.Private = append(cat.Private, models.Sealed(models.Envelope{
				ID:         d.ID,
				Ciphertext: ciphertext.String,
				Visibility: models.Private,
				CreatedAt:  d.CreatedAt,
			}))
		case d.Visibility == models.Private:
			if count.Valid {
				d.TransistorCount = &count.Int64
			}
			cat.Private = append(cat.Private, models.Plaintext(d))
		default:
			if count.Valid {
				d.TransistorCount = &count.Int64
			}
			cat.Public = append(cat.Public, d)
		}
	}
	if err := rows.Err(); err != nil {
		return models.Catalog{}, fmt.Errorf("rows: %w", err)
	}
	return cat, nil
}

// Add inserts rec. An id already in use yields models.ErrDuplicate.
func (r *SQLDieRepository) Add(ctx context.Context, rec models.Record) error {
	_, err := r.DB.ExecContext(ctx, insertDie, rowArgs(rec)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("die %q: %w", rec.ID(), models.ErrDuplicate)
		}
		return fmt.Errorf("insert die: %w", err)
	}
	return nil
}

// Delete removes the row with id; a missing row yields models.ErrNotFound.
func (r *SQLDieRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM dies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete die: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete die: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("die %q: %w", id, models.ErrNotFound)
	}
	return nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// existsByName reports whether a plaintext die with the same chip name and
// manufacturer is stored.
func existsByName(ctx context.Context, q rowQuerier, chipName, manufacturer string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM dies WHERE chip_name = $1 AND manufacturer = $2)`,
		chipName, manufacturer,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}
	return exists, nil
}

// Import inserts recs within one transaction. Plaintext dies whose chip
// name and manufacturer already exist, and records whose id exists, are
// skipped. It returns the ids added and skipped.
func (r *SQLDieRepository) Import(ctx context.Context, recs []models.Record) ([]string, []string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	added := make([]string, 0, len(recs))
	skipped := make([]string, 0, len(recs))

	for _, rec := range recs {
		if d, ok := rec.Die(); ok {
			exists, err := existsByName(ctx, tx, d.ChipName, d.Manufacturer)
			if err != nil {
				return nil, nil, err
			}
			if exists {
				skipped = append(skipped, d.ID)
				continue
			}
		}

		res, err := tx.ExecContext(ctx, insertDie+` ON CONFLICT (id) DO NOTHING`, rowArgs(rec)...)
		if err != nil {
			return nil, nil, fmt.Errorf("insert die: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			skipped = append(skipped, rec.ID())
			continue
		}
		added = append(added, rec.ID())
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return added, skipped, nil
}

// rowArgs flattens rec into insertDie arguments. Sealed records leave the
// plaintext columns empty.
func rowArgs(rec models.Record) []any {
	if env, ok := rec.Envelope(); ok {
		return []any{
			env.ID, string(models.Private), "", "", "", "",
			0.0, nil, "", "", env.Ciphertext, env.CreatedAt,
		}
	}
	d, _ := rec.Die()
	var count any
	if d.TransistorCount != nil {
		count = *d.TransistorCount
	}
	return []any{
		d.ID, string(d.Visibility), d.ChipName, d.Manufacturer, d.ProcessNode, d.Category,
		d.DieSizeMM2, count, d.ReleaseDate, d.Notes, nil, d.CreatedAt,
	}
}
