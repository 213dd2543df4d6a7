// Package entitlement decides what a subscriber may do under a subscription plan.
//
// Decisions are pure: Decide, DecideUsage, GetLimit and QualifyingUpgrades take
// the plan snapshot they work on as an argument and never read ambient state.
// Fetching subscriptions is done by callers (see the subscription package) and
// the resulting plan handed in. Plan data itself comes from a PlanSource held by
// a Loader.
//
// Key concepts:
//
//   - Plan: a subscription tier identified by a Slug (free < starter < pro < premium)
//     with a map of feature keys to Values.
//   - Value: a tagged feature value, one of Bool, Quota or Tier. Quota(Unlimited)
//     means no cap. The zero Value is Invalid and never grants anything.
//   - Decision: the allow/deny verdict for one feature plus the limit that produced it.
//   - Catalog: the validated, price-ordered set of plans. A catalog that cannot be
//     loaded degrades to a fail-closed catalog holding only the fallback free plan.
//   - QualifyingUpgrades: the plans ranked above the current one, shown after a denial.
//   - UpgradePrompt: the closed/open prompt state a caller drives after a denial.
//
// Basic usage:
//
//	loader := entitlement.NewLoader(entitlement.NewYAMLSource("plans.yaml"))
//	if err := loader.Refresh(ctx); err != nil {
//	    // catalog unavailable: loader.Catalog() is fail-closed until the next refresh
//	}
//	catalog := loader.Catalog()
//
//	plan := catalog.Free()
//	d := entitlement.DecideUsage(&plan, entitlement.FeatureWorkspaces, workspaceCount)
//	if !d.Allowed {
//	    upgrades := entitlement.QualifyingUpgrades(catalog.ListActivePlans(), entitlement.PlanRank(&plan))
//	    _ = upgrades // render the upgrade offer
//	}
package entitlement
