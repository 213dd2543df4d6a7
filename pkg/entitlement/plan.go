package entitlement

import (
	"maps"
	"slices"
)

// Slug names a plan tier. The set is closed; Rank orders it.
type Slug string

const (
	SlugFree    Slug = "free"
	SlugStarter Slug = "starter"
	SlugPro     Slug = "pro"
	SlugPremium Slug = "premium"
)

var slugRanks = map[Slug]int{
	SlugFree:    0,
	SlugStarter: 1,
	SlugPro:     2,
	SlugPremium: 3,
}

// Valid reports whether s belongs to the known slug set.
func (s Slug) Valid() bool {
	_, ok := slugRanks[s]
	return ok
}

// RankOf returns the rank of a slug, or the free rank for unknown slugs.
func RankOf(s Slug) int {
	if r, ok := slugRanks[s]; ok {
		return r
	}
	return slugRanks[SlugFree]
}

// Plan is a subscription tier and the features it grants.
type Plan struct {
	ID              string           `json:"id" yaml:"id"`
	Slug            Slug             `json:"slug" yaml:"slug"`
	Name            string           `json:"name" yaml:"name"`
	PriceMinorUnits int64            `json:"price_minor_units" yaml:"price_minor_units"` // 0 denotes a free plan
	Currency        string           `json:"currency,omitempty" yaml:"currency"`
	PriceRef        string           `json:"price_ref,omitempty" yaml:"price_ref"` // payment provider price ID, empty for free
	Features        map[string]Value `json:"features" yaml:"features"`
	IsActive        bool             `json:"is_active" yaml:"is_active"`
}

// Rank is the plan's position in the tier order.
func (p Plan) Rank() int { return RankOf(p.Slug) }

// Clone returns a copy that shares no mutable state with p.
func (p Plan) Clone() Plan {
	p.Features = maps.Clone(p.Features)
	return p
}

// PlanRank returns the rank of p, defaulting to the free rank for nil plans
// and unrecognized slugs.
func PlanRank(p *Plan) int {
	if p == nil {
		return RankOf(SlugFree)
	}
	return p.Rank()
}

// IsPaidPlan reports whether p is anything other than the free plan.
func IsPaidPlan(p *Plan) bool {
	return p != nil && p.Slug != SlugFree
}

// LimitChange describes a quota moving between two plans.
type LimitChange struct {
	From Value `json:"from"`
	To   Value `json:"to"`
}

// PlanComparison contains the differences between two plans.
type PlanComparison struct {
	Gained    []string               // granted by target only
	Lost      []string               // granted by current only
	Increased map[string]LimitChange // quotas raised in target
	Decreased map[string]LimitChange // quotas lowered in target
}

// HasLosses reports whether moving to the target plan takes anything away.
func (c *PlanComparison) HasLosses() bool {
	return len(c.Lost) > 0 || len(c.Decreased) > 0
}

// ComparePlans returns the differences between current and target plans.
// Absent keys compare as Bool(false).
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	comparison := &PlanComparison{
		Gained:    make([]string, 0),
		Lost:      make([]string, 0),
		Increased: make(map[string]LimitChange),
		Decreased: make(map[string]LimitChange),
	}

	keys := make(map[string]struct{}, len(current.Features)+len(target.Features))
	for k := range current.Features {
		keys[k] = struct{}{}
	}
	for k := range target.Features {
		keys[k] = struct{}{}
	}

	for _, key := range slices.Sorted(maps.Keys(keys)) {
		from := GetLimit(current, key)
		to := GetLimit(target, key)

		fq, fromQuota := from.AsQuota()
		tq, toQuota := to.AsQuota()
		if fromQuota && toQuota {
			if fq == tq {
				continue
			}
			change := LimitChange{From: from, To: to}
			// Going from unlimited to a cap is always a decrease.
			switch {
			case fq == Unlimited:
				comparison.Decreased[key] = change
			case tq == Unlimited, tq > fq:
				comparison.Increased[key] = change
			default:
				comparison.Decreased[key] = change
			}
			continue
		}

		// Known tier levels compare by rank; unranked labels only by access.
		ft, fromTier := from.AsTier()
		tt, toTier := to.AsTier()
		if fromTier && toTier && ft != tt {
			fr, tr := TierRank(key, ft), TierRank(key, tt)
			if fr >= 0 && tr >= 0 {
				change := LimitChange{From: from, To: to}
				if tr > fr {
					comparison.Increased[key] = change
				} else {
					comparison.Decreased[key] = change
				}
				continue
			}
		}

		had := Decide(current, key).Allowed
		has := Decide(target, key).Allowed
		switch {
		case has && !had:
			comparison.Gained = append(comparison.Gained, key)
		case had && !has:
			comparison.Lost = append(comparison.Lost, key)
		}
	}

	return comparison
}
