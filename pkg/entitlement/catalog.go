package entitlement

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Catalog is a validated, immutable set of plans ordered by price ascending.
// It is safe for concurrent use.
type Catalog struct {
	plans      []Plan
	byID       map[string]int
	bySlug     map[Slug]int
	free       int
	warnings   []error
	failClosed bool
}

// CatalogOption configures catalog validation.
type CatalogOption func(*catalogConfig)

type catalogConfig struct {
	strictTiers bool
}

// WithStrictTiers rejects catalogs where a higher tier grants less than the tier
// below it. Without it such catalogs load and the problems are reported by Warnings.
func WithStrictTiers() CatalogOption {
	return func(c *catalogConfig) { c.strictTiers = true }
}

// NewCatalog validates plans and returns them as a catalog.
// All validation failures are joined with ErrInvalidCatalog.
func NewCatalog(plans []Plan, opts ...CatalogOption) (*Catalog, error) {
	cfg := &catalogConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(plans) == 0 {
		return nil, errors.Join(ErrInvalidCatalog, ErrEmptyCatalog)
	}

	sorted := make([]Plan, 0, len(plans))
	for _, p := range plans {
		sorted = append(sorted, p.Clone())
	}
	// Rank breaks price ties so the order is total.
	slices.SortStableFunc(sorted, func(a, b Plan) int {
		return cmp.Or(cmp.Compare(a.PriceMinorUnits, b.PriceMinorUnits), cmp.Compare(a.Rank(), b.Rank()))
	})

	if err := validatePlans(sorted); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	c := &Catalog{
		plans:  sorted,
		byID:   make(map[string]int, len(sorted)),
		bySlug: make(map[Slug]int, len(sorted)),
	}
	for i, p := range sorted {
		c.byID[p.ID] = i
		c.bySlug[p.Slug] = i
	}
	c.free = c.bySlug[SlugFree]

	c.warnings = checkTierSupersets(sorted)
	if cfg.strictTiers && len(c.warnings) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidCatalog}, c.warnings...)...)
	}

	return c, nil
}

// FailClosedCatalog returns a catalog holding only free, used when the real
// catalog cannot be loaded. The plan is forced to the free slug, active and
// zero-priced, so it never grants more than the fallback describes.
func FailClosedCatalog(free Plan) *Catalog {
	free = free.Clone()
	if free.ID == "" {
		free.ID = string(SlugFree)
	}
	if free.Name == "" {
		free.Name = "Free"
	}
	free.Slug = SlugFree
	free.PriceMinorUnits = 0
	free.PriceRef = ""
	free.IsActive = true

	return &Catalog{
		plans:      []Plan{free},
		byID:       map[string]int{free.ID: 0},
		bySlug:     map[Slug]int{SlugFree: 0},
		failClosed: true,
	}
}

// DefaultFreePlan is the fallback used when none is configured: it grants nothing.
func DefaultFreePlan() Plan {
	return Plan{ID: string(SlugFree), Slug: SlugFree, Name: "Free", IsActive: true}
}

// ListActivePlans returns copies of the active plans, ascending by price.
func (c *Catalog) ListActivePlans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.IsActive {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Plans returns copies of every plan, including inactive ones, ascending by price.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	for i, p := range c.plans {
		out[i] = p.Clone()
	}
	return out
}

// Free returns the free plan. Every catalog has one.
func (c *Catalog) Free() Plan {
	return c.plans[c.free].Clone()
}

func (c *Catalog) PlanByID(id string) (Plan, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i].Clone(), true
}

func (c *Catalog) PlanBySlug(slug Slug) (Plan, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i].Clone(), true
}

// PlanByPriceRef finds the plan sold under a payment provider price ID.
func (c *Catalog) PlanByPriceRef(ref string) (Plan, bool) {
	if ref == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.PriceRef == ref {
			return p.Clone(), true
		}
	}
	return Plan{}, false
}

// Warnings lists tier-order problems found while loading a non-strict catalog.
func (c *Catalog) Warnings() []error {
	return slices.Clone(c.warnings)
}

// FailClosed reports whether this is the degraded catalog built by FailClosedCatalog.
func (c *Catalog) FailClosed() bool {
	return c.failClosed
}

// validatePlans checks the structural invariants of a price-sorted plan list.
func validatePlans(sorted []Plan) error {
	var errs []error
	ids := make(map[string]struct{}, len(sorted))
	slugs := make(map[Slug]struct{}, len(sorted))

	for _, p := range sorted {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("plan %q has an empty id", p.Name))
		} else if _, dup := ids[p.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: id %s", ErrDuplicatePlan, p.ID))
		}
		ids[p.ID] = struct{}{}

		if !p.Slug.Valid() {
			errs = append(errs, fmt.Errorf("%w: plan %s has slug %q", ErrUnknownSlug, p.ID, p.Slug))
		} else if _, dup := slugs[p.Slug]; dup {
			errs = append(errs, fmt.Errorf("%w: slug %s", ErrDuplicatePlan, p.Slug))
		}
		slugs[p.Slug] = struct{}{}

		if p.PriceMinorUnits < 0 {
			errs = append(errs, fmt.Errorf("%w: plan %s costs %d", ErrNegativePrice, p.ID, p.PriceMinorUnits))
		}

		for _, key := range QuotaFeatures() {
			if v, ok := p.Features[key]; ok && v.Kind() != KindQuota {
				errs = append(errs, fmt.Errorf("%w: plan %s has %s = %v, want a number", ErrMalformedFeature, p.ID, key, v.Any()))
			}
		}
	}

	free := slices.IndexFunc(sorted, func(p Plan) bool { return p.Slug == SlugFree })
	switch {
	case free < 0:
		errs = append(errs, ErrFreePlanMissing)
	case !sorted[free].IsActive:
		errs = append(errs, ErrFreePlanInactive)
	case sorted[free].PriceMinorUnits != 0:
		errs = append(errs, fmt.Errorf("%w: costs %d", ErrFreePlanNotFree, sorted[free].PriceMinorUnits))
	}

	// Sorted by price, ranks must be strictly ascending.
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Slug.Valid() && cur.Slug.Valid() && cur.Rank() <= prev.Rank() {
			errs = append(errs, fmt.Errorf("%w: %s (%d) is priced above %s (%d) but not ranked above it",
				ErrPriceOrder, cur.Slug, cur.PriceMinorUnits, prev.Slug, prev.PriceMinorUnits))
		}
	}

	return errors.Join(errs...)
}

// checkTierSupersets compares each active plan with the next active plan up.
func checkTierSupersets(sorted []Plan) []error {
	var warnings []error
	var prev *Plan
	for i := range sorted {
		cur := &sorted[i]
		if !cur.IsActive {
			continue
		}
		if prev != nil {
			if diff := ComparePlans(prev, cur); diff.HasLosses() {
				lost := append(slices.Clone(diff.Lost), slices.Sorted(maps.Keys(diff.Decreased))...)
				warnings = append(warnings, fmt.Errorf("%w: %s grants less than %s for %v",
					ErrTierNotSuperset, cur.Slug, prev.Slug, lost))
			}
		}
		prev = cur
	}
	return warnings
}
