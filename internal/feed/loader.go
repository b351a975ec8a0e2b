package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/diecompare/internal/models"
)

// Target receives loaded feeds. store.Memory implements it.
type Target interface {
	Begin() uint64
	ReplacePublic(stamp uint64, dies []models.Die) bool
	ReplacePrivate(stamp uint64, recs []models.Record) bool
}

// Report describes the outcome of one Load.
type Report struct {
	Public     int
	Private    int
	Skipped    int
	Stale      bool
	PublicErr  error
	PrivateErr error
}

// Loader fetches the public and private feeds into a Target.
type Loader struct {
	target   Target
	public   Source
	private  Source
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithRetry sets how many times each fetch is attempted and the base delay;
// the n-th retry waits n*backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(l *Loader) {
		if attempts > 0 {
			l.attempts = attempts
		}
		l.backoff = backoff
	}
}

// NewLoader constructs a Loader. A nil source leaves that side untouched.
func NewLoader(target Target, public, private Source, log *zap.Logger, opts ...Option) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{
		target:   target,
		public:   public,
		private:  private,
		attempts: 3,
		backoff:  500 * time.Millisecond,
		log:      log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches both feeds concurrently. The sides are independent: a failure
// on one never cancels or discards the other. The returned error joins the
// per-side errors, each wrapping models.ErrLoadFailure.
func (l *Loader) Load(ctx context.Context) (Report, error) {
	var rep Report
	var pubSkipped, privSkipped int
	var pubStale, privStale bool
	publicStamp, privateStamp := l.target.Begin(), l.target.Begin()

	var g errgroup.Group
	if l.public != nil {
		g.Go(func() error {
			data, err := l.fetch(ctx, "public", l.public)
			if err == nil {
				var dies []models.Die
				dies, pubSkipped, err = ParseDies(data)
				if err == nil {
					rep.Public = len(dies)
					pubStale = !l.target.ReplacePublic(publicStamp, dies)
				}
			}
			if err != nil {
				rep.PublicErr = fmt.Errorf("public feed %s: %w", l.public, wrapLoad(err))
			}
			return rep.PublicErr
		})
	}
	if l.private != nil {
		g.Go(func() error {
			data, err := l.fetch(ctx, "private", l.private)
			if err == nil {
				var recs []models.Record
				recs, privSkipped, err = ParsePrivate(data)
				if err == nil {
					rep.Private = len(recs)
					privStale = !l.target.ReplacePrivate(privateStamp, recs)
				}
			}
			if err != nil {
				rep.PrivateErr = fmt.Errorf("private feed %s: %w", l.private, wrapLoad(err))
			}
			return rep.PrivateErr
		})
	}
	_ = g.Wait()

	rep.Skipped = pubSkipped + privSkipped
	rep.Stale = pubStale || privStale

	l.log.Info("feeds loaded",
		zap.Int("public", rep.Public),
		zap.Int("private", rep.Private),
		zap.Int("skipped", rep.Skipped),
		zap.Bool("stale", rep.Stale),
	)
	return rep, errors.Join(rep.PublicErr, rep.PrivateErr)
}

// fetch retries src with linear backoff until it succeeds, the attempts run
// out, or ctx is done.
func (l *Loader) fetch(ctx context.Context, side string, src Source) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		data, err := src.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		l.log.Warn("feed fetch failed",
			zap.String("side", side),
			zap.String("source", src.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == l.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * l.backoff):
		}
	}
	return nil, lastErr
}

// Watch reloads the feeds every interval until ctx is done. The returned
// channel is closed once the goroutine has exited.
func (l *Loader) Watch(ctx context.Context, interval time.Duration) <-chan struct{} {
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
				if _, err := l.Load(ctx); err != nil {
					l.log.Error("feed reload failed", zap.Error(err))
				}
			}
		}
	}()
	return done
}

func wrapLoad(err error) error {
	if errors.Is(err, models.ErrLoadFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrLoadFailure, err)
}
