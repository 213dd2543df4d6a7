// Command server runs the plan entitlement API: plan catalog, subscriber
// entitlement checks, usage recording, Paddle checkout and webhooks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/planguard/internal/db/migrations"
	"github.com/dmitrymomot/planguard/modules/billing"
	"github.com/dmitrymomot/planguard/pkg/clientip"
	"github.com/dmitrymomot/planguard/pkg/config"
	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/httpserver"
	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/pkg/pg"
	"github.com/dmitrymomot/planguard/pkg/ratelimit"
	"github.com/dmitrymomot/planguard/pkg/redis"
	"github.com/dmitrymomot/planguard/pkg/requestid"
	"github.com/dmitrymomot/planguard/pkg/subscription"
	"github.com/dmitrymomot/planguard/pkg/webhook"
	"github.com/dmitrymomot/planguard/svc/gate"
	"github.com/dmitrymomot/planguard/svc/notify"
	"github.com/dmitrymomot/planguard/svc/subscriber"
	"github.com/dmitrymomot/planguard/svc/usage"
)

const (
	storageMemory   = "memory"
	storagePostgres = "postgres"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_SERVICE" envDefault:"planguard"`

	Storage   string `env:"STORAGE_BACKEND" envDefault:"memory"` // memory or postgres
	PlansFile string `env:"PLANS_FILE" envDefault:"config/plans.yaml"`
	SeedPlans bool   `env:"SEED_PLANS" envDefault:"true"` // postgres only

	CatalogRefresh time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"5m"`
	StrictTiers    bool          `env:"CATALOG_STRICT_TIERS" envDefault:"false"`

	SubscriberHeader  string        `env:"SUBSCRIBER_HEADER" envDefault:"X-Subscriber-ID"`
	AttendanceBaseURL string        `env:"ATTENDANCE_BASE_URL"`
	ReadinessTimeout  time.Duration `env:"READINESS_TIMEOUT" envDefault:"3s"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := config.Load[appConfig]()
	if err != nil {
		return err
	}

	logCfg, err := config.Load[logger.Config]()
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, app.Service),
		logger.WithConfig(logCfg),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			subscriber.LoggerExtractor(),
		),
	)
	slog.SetDefault(log)

	storage, err := openBackend(ctx, app, log)
	if err != nil {
		return err
	}
	defer storage.close()

	loaderOpts := []entitlement.LoaderOption{entitlement.WithLogger(log)}
	if app.StrictTiers {
		loaderOpts = append(loaderOpts, entitlement.WithCatalogOptions(entitlement.WithStrictTiers()))
	}
	loader := entitlement.NewLoader(entitlement.NewBreakerSource(storage.plans, entitlement.DefaultBreakerSettings()), loaderOpts...)
	if err := loader.Refresh(ctx); err != nil {
		log.WarnContext(ctx, "plan catalog unavailable, serving the fail-closed catalog", logger.Error(err))
	}

	resolverCfg, err := config.Load[subscription.ResolverConfig]()
	if err != nil {
		return err
	}
	cache, cacheChecks, closeCache, err := resolverCache(ctx, resolverCfg)
	if err != nil {
		return err
	}
	defer closeCache()

	resolver := subscription.NewResolver(loader.Catalog, storage.subscriptions,
		subscription.WithCache(cache),
		subscription.WithResolverLogger(log),
		subscription.WithLookupTimeout(resolverCfg.LookupTimeout),
	)

	g, ctx := errgroup.WithContext(ctx)

	serviceOpts := []subscription.ServiceOption{
		subscription.WithInvalidator(resolver),
		subscription.WithServiceLogger(log),
	}
	notifier, err := newNotifier(log)
	if err != nil {
		return err
	}
	if notifier != nil {
		serviceOpts = append(serviceOpts, subscription.WithPlanChangeHook(notifier.PlanChanged))
		g.Go(func() error { return notifier.Run(ctx) })
	}

	provider, err := billingProvider(ctx, log)
	if err != nil {
		return err
	}
	subs := subscription.NewService(storage.subscriptions, provider, loader.Catalog, serviceOpts...)

	tracker := usage.New(storage.usage, usage.WithLogger(log))
	gateSvc := gate.New(resolver, loader.Catalog,
		gate.WithCounters(tracker.Counters()),
		gate.WithLogger(log),
	)

	checks := append(storage.checks, cacheChecks...)
	checks = append(checks, httpserver.Check{Name: "catalog", Probe: func(context.Context) error {
		if !loader.Loaded() {
			return entitlement.ErrCatalogUnavailable
		}
		return nil
	}})

	throttle, err := newThrottle(log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware())
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, app.ReadinessTimeout, checks...))
	r.Mount("/v1", billing.Router(billing.RouterOptions{
		Catalog:           loader.Catalog,
		Gate:              gateSvc,
		Subscriptions:     subs,
		Usage:             tracker,
		Identify:          subscriber.NewHeaderResolver(app.SubscriberHeader),
		AttendanceBaseURL: app.AttendanceBaseURL,
		Throttle:          throttle,
		Logger:            log,
	}))

	httpCfg, err := config.Load[httpserver.Config]()
	if err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g.Go(func() error { return loader.Run(ctx, app.CatalogRefresh) })
	g.Go(func() error { return srv.Run(ctx, r) })
	return g.Wait()
}

type backend struct {
	plans         entitlement.PlanSource
	subscriptions subscription.Store
	usage         usage.Store
	checks        []httpserver.Check
	close         func()
}

func openBackend(ctx context.Context, app appConfig, log *slog.Logger) (*backend, error) {
	yamlPlans := entitlement.NewYAMLSource(app.PlansFile)

	switch app.Storage {
	case storageMemory:
		log.InfoContext(ctx, "using in-memory storage", slog.String("plans_file", app.PlansFile))
		return &backend{
			plans:         yamlPlans,
			subscriptions: subscription.NewMemoryStore(),
			usage:         usage.NewMemoryStore(),
			close:         func() {},
		}, nil

	case storagePostgres:
		cfg, err := config.Load[pg.Config]()
		if err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
				pool.Close()
				return nil, err
			}
		}

		planSource := subscription.NewPGPlanSource(pool)
		if app.SeedPlans {
			plans, err := yamlPlans.LoadPlans(ctx)
			if err == nil {
				err = planSource.SavePlans(ctx, plans)
			}
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("seed plans from %s: %w", app.PlansFile, err)
			}
			log.InfoContext(ctx, "plans seeded", slog.Int("count", len(plans)))
		}

		return &backend{
			plans:         planSource,
			subscriptions: subscription.NewPGStore(pool),
			usage:         usage.NewPGStore(pool),
			checks:        []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}},
			close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", app.Storage)
	}
}

func resolverCache(ctx context.Context, cfg subscription.ResolverConfig) (subscription.Cache, []httpserver.Check, func(), error) {
	switch cfg.CacheBackend {
	case "none":
		return subscription.NoOpCache{}, nil, func() {}, nil
	case "memory":
		return subscription.NewLRUCache(cfg.CacheSize, cfg.CacheTTL), nil, func() {}, nil
	case "redis":
		rcfg, err := config.Load[redis.Config]()
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := []httpserver.Check{{Name: "redis", Probe: redis.Healthcheck(client)}}
		closeFn := func() { _ = client.Close() }
		return subscription.NewKVCache(redis.NewStorage(client, rcfg.KeyPrefix), cfg.CacheTTL), checks, closeFn, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown RESOLVER_CACHE %q", cfg.CacheBackend)
	}
}

// billingProvider returns nil when Paddle is not configured; checkout and
// webhooks then answer 501.
func billingProvider(ctx context.Context, log *slog.Logger) (subscription.BillingProvider, error) {
	cfg, err := config.Load[subscription.PaddleConfig]()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		log.WarnContext(ctx, "paddle is not configured, billing endpoints are disabled")
		return nil, nil
	}
	p, err := subscription.NewPaddleProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("paddle provider: %w", err)
	}
	return p, nil
}

func newNotifier(log *slog.Logger) (*notify.Notifier, error) {
	cfg, err := config.Load[notify.Config]()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	sender, err := webhook.NewSender(cfg.URL, cfg.Secret,
		webhook.WithMaxRetries(cfg.MaxRetries),
		webhook.WithTimeout(cfg.Timeout),
		webhook.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return notify.New(sender, notify.WithQueueSize(cfg.QueueSize), notify.WithLogger(log)), nil
}

// newThrottle returns nil when RATE_LIMIT_RATE is 0.
func newThrottle(log *slog.Logger) (func(http.Handler) http.Handler, error) {
	cfg, err := config.Load[ratelimit.Config]()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	tb, err := ratelimit.NewTokenBucket(cfg)
	if err != nil {
		return nil, err
	}
	return ratelimit.Middleware(tb, subscriber.RateLimitKey, ratelimit.WithLogger(log)), nil
}
