package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/feed"
	"github.com/atinyakov/diecompare/internal/layout"
	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/projection"
	"github.com/atinyakov/diecompare/internal/seal"
	"github.com/atinyakov/diecompare/internal/selection"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// DieRepository defines the Record Store operations needed by the
// CatalogService. store.Memory and repository.SQLDieRepository implement it.
type DieRepository interface {
	// Snapshot returns both partitions of the store.
	Snapshot(ctx context.Context) (models.Catalog, error)
	// Add stores a record or returns models.ErrDuplicate.
	Add(ctx context.Context, rec models.Record) error
	// Delete removes a record or returns models.ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Importer bulk-loads records, skipping ones already present.
type Importer interface {
	Import(ctx context.Context, recs []models.Record) (added, skipped []string, err error)
}

// Listing is a filtered view of the visible set with its aggregates.
type Listing struct {
	Dies        []models.Die     `json:"dies"`
	Stats       projection.Stats `json:"stats"`
	Protected   int              `json:"protected"`
	Unavailable int              `json:"unavailable"`
}

// CatalogService implements browsing, mutation, export and comparison of
// die records for a caller's AuthState.
type CatalogService struct {
	repo     DieRepository
	resolver *visibility.Resolver
	sealer   seal.Sealer
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo DieRepository, resolver *visibility.Resolver, sealer seal.Sealer, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		repo:     repo,
		resolver: resolver,
		sealer:   sealer,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log,
	}
}

// Visible resolves the store for auth. On models.ErrWrongCredential the
// public records are still returned.
func (s *CatalogService) Visible(ctx context.Context, auth visibility.AuthState) (visibility.VisibleSet, error) {
	cat, err := s.repo.Snapshot(ctx)
	if err != nil {
		return visibility.VisibleSet{}, fmt.Errorf("snapshot: %w", err)
	}
	return s.resolver.Resolve(cat, auth)
}

// visible is Visible for read paths: a wrong credential degrades to the
// public set, reported through Unavailable.
func (s *CatalogService) visible(ctx context.Context, auth visibility.AuthState) (visibility.VisibleSet, error) {
	vs, err := s.Visible(ctx, auth)
	if errors.Is(err, models.ErrWrongCredential) {
		s.log.Warn("session passphrase no longer opens private records")
		return vs, nil
	}
	return vs, err
}

// Browse returns the visible dies whose category matches, with stats over
// the filtered set.
func (s *CatalogService) Browse(ctx context.Context, auth visibility.AuthState, category string) (Listing, error) {
	vs, err := s.visible(ctx, auth)
	if err != nil {
		return Listing{}, err
	}
	dies, stats := projection.Apply(vs.Dies, category)
	return Listing{
		Dies:        dies,
		Stats:       stats,
		Protected:   vs.Protected,
		Unavailable: vs.Unavailable,
	}, nil
}

// Get returns a visible die by id or models.ErrNotFound.
func (s *CatalogService) Get(ctx context.Context, auth visibility.AuthState, id string) (models.Die, error) {
	vs, err := s.visible(ctx, auth)
	if err != nil {
		return models.Die{}, err
	}
	for _, d := range vs.Dies {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Die{}, fmt.Errorf("die %q: %w", id, models.ErrNotFound)
}

// Add validates nd, assigns its id and timestamp, seals it when private and
// stores it. An invalid die leaves the store untouched.
func (s *CatalogService) Add(ctx context.Context, nd models.NewDie, auth visibility.AuthState) (models.Die, error) {
	d := nd.Die(s.newID(), s.now().UTC().Format(time.RFC3339))
	if err := d.Validate(); err != nil {
		return models.Die{}, err
	}

	rec := models.Plaintext(d)
	if d.Visibility == models.Private {
		env, err := visibility.SealDie(s.sealer, d, auth.Passphrase())
		if err != nil {
			return models.Die{}, err
		}
		rec = models.Sealed(env)
	}

	if err := s.repo.Add(ctx, rec); err != nil {
		return models.Die{}, err
	}
	s.log.Info("die added", zap.String("id", d.ID), zap.String("visibility", string(d.Visibility)))
	return d, nil
}

// Delete removes a die the caller can see. Hidden records are reported as
// models.ErrNotFound.
func (s *CatalogService) Delete(ctx context.Context, auth visibility.AuthState, id string) error {
	vs, err := s.visible(ctx, auth)
	if err != nil {
		return err
	}
	if !vs.Contains(id) {
		return fmt.Errorf("die %q: %w", id, models.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("die deleted", zap.String("id", id))
	return nil
}

// Export renders the visible set in feed format.
func (s *CatalogService) Export(ctx context.Context, auth visibility.AuthState) ([]byte, error) {
	vs, err := s.visible(ctx, auth)
	if err != nil {
		return nil, err
	}
	return feed.Export(vs.Dies)
}

// Compare lays out the visible dies among ids. Ids that are not visible
// are ignored.
func (s *CatalogService) Compare(ctx context.Context, auth visibility.AuthState, ids []string) (layout.Result, error) {
	vs, err := s.visible(ctx, auth)
	if err != nil {
		return layout.Result{}, err
	}
	return layout.Compute(selection.Pick(ids, vs.Dies))
}

// Import bulk-loads feed contents through imp. Plaintext private dies are
// sealed under passphrase first; sealed envelopes pass through unchanged.
func (s *CatalogService) Import(ctx context.Context, imp Importer, public []models.Die, private []models.Record, passphrase string) ([]string, []string, error) {
	stamp := s.now().UTC().Format(time.RFC3339)
	recs := make([]models.Record, 0, len(public)+len(private))
	toSeal := append([]models.Record(nil), private...)
	for _, d := range public {
		if d.CreatedAt == "" {
			d.CreatedAt = stamp
		}
		if d.Visibility == models.Private {
			toSeal = append(toSeal, models.Plaintext(d))
			continue
		}
		recs = append(recs, models.Plaintext(d))
	}
	for _, rec := range toSeal {
		d, ok := rec.Die()
		if !ok {
			recs = append(recs, rec)
			continue
		}
		if d.CreatedAt == "" {
			d.CreatedAt = stamp
		}
		env, err := visibility.SealDie(s.sealer, d, passphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("die %q: %w", d.ID, err)
		}
		recs = append(recs, models.Sealed(env))
	}

	added, skipped, err := imp.Import(ctx, recs)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("import finished", zap.Int("added", len(added)), zap.Int("skipped", len(skipped)))
	return added, skipped, nil
}
