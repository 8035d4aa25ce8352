// Package ingest populates the knowledge corpus. Crawl walks the
// storefront help center and indexes article text into the FAQ
// collection; SeedRules loads business-rule YAML files into the
// business-rule collection. A file lock serializes runs so two ingest
// invocations never interleave writes against the same corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/koopa0/kiosk/internal/knowledge"
)

// ErrLocked reports that another ingest run holds the lock.
var ErrLocked = errors.New("another ingest run is in progress")

// Upserter is the write surface of the knowledge index the ingestor
// needs. *knowledge.Store is the production implementation.
type Upserter interface {
	Upsert(ctx context.Context, e knowledge.Entry) error
	DeleteBySource(ctx context.Context, sourceURL string) (int64, error)
}

// Config holds crawler and locking settings.
type Config struct {
	// AllowedDomains restricts the crawl. Empty means the start URL's
	// host is the only allowed domain.
	AllowedDomains []string
	// Parallelism is the max concurrent requests and the max concurrent
	// embedding calls (default: 2).
	Parallelism int
	// Delay between requests to the same domain (default: 500ms).
	Delay time.Duration
	// MaxDepth bounds link-following depth (default: 3).
	MaxDepth int
	// LockPath is the lock file location (default: kiosk-ingest.lock in
	// the OS temp dir).
	LockPath string
}

// Ingestor writes crawled articles and seeded rules into the knowledge
// index.
type Ingestor struct {
	store  Upserter
	cfg    Config
	logger *slog.Logger
}

// New creates an Ingestor, applying defaults for zero-value settings.
func New(store Upserter, cfg Config, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.LockPath == "" {
		cfg.LockPath = filepath.Join(os.TempDir(), "kiosk-ingest.lock")
	}
	return &Ingestor{store: store, cfg: cfg, logger: logger}, nil
}

// lock takes the ingest file lock without blocking. The returned release
// must be called when the run finishes.
func (ing *Ingestor) lock() (func(), error) {
	fl := flock.New(ing.cfg.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock %s: %w", ing.cfg.LockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, ing.cfg.LockPath)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			ing.logger.Warn("releasing ingest lock", "path", ing.cfg.LockPath, "error", err)
		}
	}, nil
}
