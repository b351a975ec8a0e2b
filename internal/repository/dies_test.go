package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/atinyakov/diecompare/internal/models"
)

func setupMock(t *testing.T) (*SQLDieRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewSQLDieRepository(db)
	cleanup := func() {
		db.Close()
	}
	return repo, mock, cleanup
}

var dieColumns = []string{
	"id", "visibility", "chip_name", "manufacturer", "process_node", "category",
	"die_size_mm2", "transistor_count", "release_date", "notes", "ciphertext", "created_at",
}

func TestSnapshot_PartitionsRows(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(dieColumns).
		AddRow("a", "public", "M4", "Apple", "3nm", "SoC", 165.9, int64(28_000_000_000), "2024-05-07", "", nil, "2024-01-01T00:00:00Z").
		AddRow("b", "private", "", "", "", "", 0.0, nil, "", "", "CIPHER", "2024-01-02T00:00:00Z").
		AddRow("c", "private", "Legacy", "Acme", "", "", 12.0, nil, "", "", nil, "2024-01-03T00:00:00Z")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM dies`)).WillReturnRows(rows)

	cat, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Public) != 1 || len(cat.Private) != 2 {
		t.Fatalf("got %d public, %d private; want 1, 2", len(cat.Public), len(cat.Private))
	}
	if tc := cat.Public[0].TransistorCount; tc == nil || *tc != 28_000_000_000 {
		t.Errorf("transistor count = %v", tc)
	}
	env, ok := cat.Private[0].Envelope()
	if !ok || env.Ciphertext != "CIPHER" || env.Visibility != models.Private {
		t.Errorf("sealed row = %+v, %v", env, ok)
	}
	if d, ok := cat.Private[1].Die(); !ok || d.ChipName != "Legacy" {
		t.Errorf("legacy row = %+v, %v", d, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSnapshot_QueryError(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM dies`)).WillReturnError(errors.New("query fail"))

	_, err := repo.Snapshot(context.Background())
	if err == nil || !regexp.MustCompile(`Snapshot`).MatchString(err.Error()) {
		t.Errorf("expected Snapshot error, got %v", err)
	}
}

func TestAdd(t *testing.T) {
	count := int64(5)
	public := models.Plaintext(models.Die{
		ID: "a", ChipName: "X1", Manufacturer: "Acme", DieSizeMM2: 10,
		TransistorCount: &count, Visibility: models.Public, CreatedAt: "t",
	})
	sealed := models.Sealed(models.Envelope{ID: "s", Ciphertext: "CT", Visibility: models.Private, CreatedAt: "t"})

	tests := []struct {
		name    string
		rec     models.Record
		args    []any
		execErr error
		wantErr error
	}{
		{
			name: "public",
			rec:  public,
			args: []any{"a", "public", "X1", "Acme", "", "", 10.0, int64(5), "", "", nil, "t"},
		},
		{
			name: "sealed keeps plaintext columns empty",
			rec:  sealed,
			args: []any{"s", "private", "", "", "", "", 0.0, nil, "", "", "CT", "t"},
		},
		{
			name:    "duplicate id",
			rec:     public,
			args:    []any{"a", "public", "X1", "Acme", "", "", 10.0, int64(5), "", "", nil, "t"},
			execErr: &pq.Error{Code: "23505"},
			wantErr: models.ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMock(t)
			defer cleanup()

			args := make([]driver.Value, 0, len(tt.args))
			for _, a := range tt.args {
				args = append(args, a)
			}
			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dies`)).WithArgs(args...)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Add(context.Background(), tt.rec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add error = %v; want %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMock(t)
			defer cleanup()

			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM dies WHERE id = $1`)).
				WithArgs("x").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), "x")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImport_SkipsExistingNames(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	fresh := models.Plaintext(models.Die{ID: "n", ChipName: "New", Manufacturer: "Acme", DieSizeMM2: 1, Visibility: models.Public})
	known := models.Plaintext(models.Die{ID: "k", ChipName: "Known", Manufacturer: "Acme", DieSizeMM2: 1, Visibility: models.Public})
	sealed := models.Sealed(models.Envelope{ID: "s", Ciphertext: "CT", Visibility: models.Private})

	existsQuery := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM dies WHERE chip_name = $1 AND manufacturer = $2)`)

	mock.ExpectBegin()
	mock.ExpectQuery(existsQuery).WithArgs("New", "Acme").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(existsQuery).WithArgs("Known", "Acme").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	added, skipped, err := repo.Import(context.Background(), []models.Record{fresh, known, sealed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 1 || added[0] != "n" {
		t.Errorf("added = %v; want [n]", added)
	}
	if len(skipped) != 2 || skipped[0] != "k" || skipped[1] != "s" {
		t.Errorf("skipped = %v; want [k s]", skipped)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestImport_RollsBackOnError(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	rec := models.Sealed(models.Envelope{ID: "s", Ciphertext: "CT", Visibility: models.Private})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dies`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, _, err := repo.Import(context.Background(), []models.Record{rec}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
