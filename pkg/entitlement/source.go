package entitlement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"gopkg.in/yaml.v3"
)

// PlanSource loads the raw plan list. Implementations: in-memory, YAML file,
// Postgres (subscription.PGPlanSource) and the circuit breaker wrapper.
type PlanSource interface {
	LoadPlans(ctx context.Context) ([]Plan, error)
}

// PlanSourceFunc adapts a plain function to PlanSource.
type PlanSourceFunc func(ctx context.Context) ([]Plan, error)

func (f PlanSourceFunc) LoadPlans(ctx context.Context) ([]Plan, error) { return f(ctx) }

type inMemSource struct {
	mu    sync.RWMutex
	plans []Plan
}

// NewInMemSource returns a PlanSource holding deep copies of plans.
func NewInMemSource(plans ...Plan) PlanSource {
	s := &inMemSource{plans: make([]Plan, len(plans))}
	for i, p := range plans {
		s.plans[i] = p.Clone()
	}
	return s
}

func (s *inMemSource) LoadPlans(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.Clone()
	}
	return out, nil
}

type yamlSource struct {
	path string
}

// NewYAMLSource reads plans from a YAML file on every load:
//
//	plans:
//	  - id: free
//	    slug: free
//	    name: Free
//	    price_minor_units: 0
//	    is_active: true
//	    features:
//	      provas_mes: 3
//	      qr_chamada: false
func NewYAMLSource(path string) PlanSource {
	return &yamlSource{path: path}
}

type yamlCatalog struct {
	Plans []Plan `yaml:"plans"`
}

func (s *yamlSource) LoadPlans(ctx context.Context) ([]Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a plans document in the NewYAMLSource format.
func ParseYAML(data []byte) ([]Plan, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	return doc.Plans, nil
}

// BreakerSettings tunes the circuit breaker around a PlanSource.
type BreakerSettings struct {
	Name                string
	MaxFailures         uint32        // consecutive failures before the breaker opens
	OpenTimeout         time.Duration // how long the breaker stays open
	HalfOpenMaxRequests uint32
	Interval            time.Duration // closed-state counter reset period, 0 keeps counts
}

// DefaultBreakerSettings returns settings suited to a catalog refreshed every few minutes.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "plan-catalog",
		MaxFailures:         3,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
		Interval:            time.Minute,
	}
}

type breakerSource struct {
	next    PlanSource
	breaker *gobreaker.CircuitBreaker[[]Plan]
}

// NewBreakerSource stops hitting a failing source until it has had time to recover.
// While the breaker is open, loads fail immediately with ErrCatalogUnavailable.
func NewBreakerSource(next PlanSource, st BreakerSettings) PlanSource {
	if st.MaxFailures == 0 {
		st.MaxFailures = DefaultBreakerSettings().MaxFailures
	}
	maxFailures := st.MaxFailures

	cb := gobreaker.NewCircuitBreaker[[]Plan](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.HalfOpenMaxRequests,
		Interval:    st.Interval,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A cancelled caller says nothing about the source's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &breakerSource{next: next, breaker: cb}
}

func (s *breakerSource) LoadPlans(ctx context.Context) ([]Plan, error) {
	plans, err := s.breaker.Execute(func() ([]Plan, error) {
		return s.next.LoadPlans(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrCatalogUnavailable, err)
		}
		return nil, err
	}
	return plans, nil
}
