package entitlement_test

import (
	"github.com/dmitrymomot/planguard/pkg/entitlement"
)

func freePlan() entitlement.Plan {
	return entitlement.Plan{
		ID:              "plan_free",
		Slug:            entitlement.SlugFree,
		Name:            "Free",
		PriceMinorUnits: 0,
		Currency:        "BRL",
		IsActive:        true,
		Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces:     entitlement.Quota(1),
			entitlement.FeatureExamsPerMonth:  entitlement.Quota(3),
			entitlement.FeatureNotes:          entitlement.Quota(10),
			entitlement.FeatureQRAttendance:   entitlement.Bool(false),
			entitlement.FeatureDocumentEditor: entitlement.Bool(false),
			entitlement.FeatureSupport:        entitlement.Bool(false),
		},
	}
}

func starterPlan() entitlement.Plan {
	return entitlement.Plan{
		ID:              "plan_starter",
		Slug:            entitlement.SlugStarter,
		Name:            "Starter",
		PriceMinorUnits: 1990,
		Currency:        "BRL",
		PriceRef:        "pri_starter",
		IsActive:        true,
		Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces:     entitlement.Quota(3),
			entitlement.FeatureExamsPerMonth:  entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureNotes:          entitlement.Quota(100),
			entitlement.FeatureQRAttendance:   entitlement.Bool(false),
			entitlement.FeatureDocumentEditor: entitlement.Tier("basico"),
			entitlement.FeatureSupport:        entitlement.Tier("email"),
		},
	}
}

func proPlan() entitlement.Plan {
	return entitlement.Plan{
		ID:              "plan_pro",
		Slug:            entitlement.SlugPro,
		Name:            "Pro",
		PriceMinorUnits: 4990,
		Currency:        "BRL",
		PriceRef:        "pri_pro",
		IsActive:        true,
		Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces:     entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureExamsPerMonth:  entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureNotes:          entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureQRAttendance:   entitlement.Bool(true),
			entitlement.FeatureDocumentEditor: entitlement.Tier("completo"),
			entitlement.FeatureSupport:        entitlement.Tier("prioritario"),
		},
	}
}

func premiumPlan() entitlement.Plan {
	return entitlement.Plan{
		ID:              "plan_premium",
		Slug:            entitlement.SlugPremium,
		Name:            "Premium",
		PriceMinorUnits: 9990,
		Currency:        "BRL",
		PriceRef:        "pri_premium",
		IsActive:        true,
		Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces:     entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureExamsPerMonth:  entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureNotes:          entitlement.Quota(entitlement.Unlimited),
			entitlement.FeatureQRAttendance:   entitlement.Bool(true),
			entitlement.FeatureDocumentEditor: entitlement.Tier("completo"),
			entitlement.FeatureSupport:        entitlement.Tier("dedicado"),
		},
	}
}

// allPlans returns the four tiers in ascending price order.
func allPlans() []entitlement.Plan {
	return []entitlement.Plan{freePlan(), starterPlan(), proPlan(), premiumPlan()}
}

func slugsOf(plans []entitlement.Plan) []entitlement.Slug {
	out := make([]entitlement.Slug, len(plans))
	for i, p := range plans {
		out[i] = p.Slug
	}
	return out
}
