package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/planguard/pkg/logger"
)

// Loader owns the live catalog. Until the first successful Refresh, and
// whenever no catalog has ever loaded, it serves the fail-closed catalog.
// Catalog is safe to call from any goroutine.
type Loader struct {
	source      PlanSource
	fallback    Plan
	catalogOpts []CatalogOption
	logger      *slog.Logger

	current atomic.Pointer[Catalog]
	loaded  atomic.Bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFallbackPlan sets the plan served by the fail-closed catalog.
func WithFallbackPlan(p Plan) LoaderOption {
	return func(l *Loader) { l.fallback = p }
}

// WithCatalogOptions passes validation options to NewCatalog on every refresh.
func WithCatalogOptions(opts ...CatalogOption) LoaderOption {
	return func(l *Loader) { l.catalogOpts = append(l.catalogOpts, opts...) }
}

func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

func NewLoader(src PlanSource, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:   src,
		fallback: DefaultFreePlan(),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.current.Store(FailClosedCatalog(l.fallback))
	return l
}

// Catalog returns the catalog currently in effect. It never returns nil.
func (l *Loader) Catalog() *Catalog {
	return l.current.Load()
}

// Loaded reports whether a catalog has been loaded successfully at least once.
func (l *Loader) Loaded() bool {
	return l.loaded.Load()
}

// Refresh loads and validates the catalog. On failure the catalog in effect is
// kept (the last good one, or the fail-closed one) and the error wraps
// ErrCatalogUnavailable.
func (l *Loader) Refresh(ctx context.Context) error {
	plans, err := l.source.LoadPlans(ctx)
	if err == nil {
		var cat *Catalog
		if cat, err = NewCatalog(plans, l.catalogOpts...); err == nil {
			for _, w := range cat.Warnings() {
				l.logger.WarnContext(ctx, "plan catalog tier order", logger.Error(w))
			}
			l.current.Store(cat)
			l.loaded.Store(true)
			return nil
		}
	}

	l.logger.ErrorContext(ctx, "plan catalog refresh failed",
		logger.Error(err),
		slog.Bool("fail_closed", l.Catalog().FailClosed()),
	)
	if errors.Is(err, ErrCatalogUnavailable) {
		return err
	}
	return errors.Join(ErrCatalogUnavailable, err)
}

// Run refreshes the catalog every interval until ctx is done. Refresh errors are
// logged and do not stop the loop.
func (l *Loader) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = l.Refresh(ctx)
		}
	}
}
