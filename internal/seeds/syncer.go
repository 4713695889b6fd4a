package seeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
	"github.com/garyellow/erp-gateway-go/internal/r2client"
)

// Sync outcomes per dataset.
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusMissing   = "missing"
	StatusError     = "error"
)

// syncConcurrency bounds parallel object fetches.
const syncConcurrency = 4

// ObjectStore is the subset of r2client.Client used by Syncer.
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Syncer installs R2 overrides for catalog datasets.
// Objects live at <prefix>/<name>.json.zst.
type Syncer struct {
	store     ObjectStore
	catalog   *Catalog
	prefix    string
	timeout   time.Duration
	readiness *ReadinessState
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewSyncer creates a syncer. readiness is marked once the first Sync returns.
func NewSyncer(store ObjectStore, catalog *Catalog, prefix string, timeout time.Duration, readiness *ReadinessState, m *metrics.Metrics, log *logger.Logger) *Syncer {
	return &Syncer{
		store:     store,
		catalog:   catalog,
		prefix:    prefix,
		timeout:   timeout,
		readiness: readiness,
		metrics:   m,
		log:       log.WithModule("seeds"),
	}
}

// Key returns the object key for dataset name.
func (s *Syncer) Key(name string) string {
	return ObjectKey(s.prefix, name)
}

// ObjectKey returns the object key of dataset name below prefix.
func ObjectKey(prefix, name string) string {
	if prefix == "" {
		return name + ".json.zst"
	}
	return prefix + "/" + name + ".json.zst"
}

// Sync refreshes every dataset once. Failures for one dataset do not stop the
// others; they are joined into the returned error and the previous data stays.
func (s *Syncer) Sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var (
		mu   sync.Mutex
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(syncConcurrency)
	for _, name := range s.catalog.Names() {
		g.Go(func() error {
			status, err := s.syncOne(ctx, name)
			s.metrics.RecordSeedSync(name, status)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.RecordSeedSyncDuration(time.Since(start).Seconds())
	return errors.Join(errs...)
}

func (s *Syncer) syncOne(ctx context.Context, name string) (string, error) {
	key := s.Key(name)

	etag, err := s.store.HeadObject(ctx, key)
	if errors.Is(err, r2client.ErrNotFound) {
		return s.revert(name), nil
	}
	if err != nil {
		return StatusError, err
	}
	if etag != "" && etag == s.catalog.ETag(name) {
		return StatusUnchanged, nil
	}

	body, etag, err := s.store.Download(ctx, key)
	if errors.Is(err, r2client.ErrNotFound) {
		return s.revert(name), nil
	}
	if err != nil {
		return StatusError, err
	}
	defer func() { _ = body.Close() }()

	data, err := r2client.Decompress(body)
	if err != nil {
		return StatusError, err
	}
	if err := s.catalog.SetOverride(name, data, etag); err != nil {
		return StatusError, err
	}

	s.log.WithField("dataset", name).WithField("etag", etag).Info("Installed seed override")
	return StatusUpdated, nil
}

// revert drops an override whose object was removed so the embedded default is served again.
func (s *Syncer) revert(name string) string {
	if s.catalog.Source(name) == SourceOverride {
		s.catalog.ClearOverride(name)
		s.log.WithField("dataset", name).Info("Seed override removed, serving embedded default")
	}
	return StatusMissing
}

// Run syncs immediately, marks readiness, then resyncs every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)
	s.readiness.MarkReady()

	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	start := time.Now()
	err := s.Sync(ctx)
	s.metrics.RecordJob("seed_sync", time.Since(start).Seconds())
	if err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("Seed sync finished with errors; keeping previous datasets")
		return
	}
	s.log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Seed sync complete")
}
