package entitlement

// QualifyingUpgrades returns the plans ranked strictly above currentRank,
// excluding free, in the order given. Callers normally pass ListActivePlans.
func QualifyingUpgrades(allPlans []Plan, currentRank int) []Plan {
	out := make([]Plan, 0, len(allPlans))
	for _, p := range allPlans {
		if p.Slug == SlugFree || p.Rank() <= currentRank {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

// UpgradesFor returns the active plans above current that unlock feature:
// they grant it and, for quotas, allow more than current does. An empty
// feature returns every qualifying upgrade. A nil current is treated as free.
func UpgradesFor(c *Catalog, current *Plan, feature string) []Plan {
	candidates := QualifyingUpgrades(c.ListActivePlans(), PlanRank(current))
	if feature == "" {
		return candidates
	}
	out := candidates[:0]
	for _, p := range candidates {
		if unlocks(&p, current, feature) {
			out = append(out, p)
		}
	}
	return out
}

func unlocks(candidate, current *Plan, feature string) bool {
	if !Decide(candidate, feature).Allowed {
		return false
	}
	want, ok := GetLimit(candidate, feature).AsQuota()
	if !ok {
		return true
	}
	have, ok := GetLimit(current, feature).AsQuota()
	switch {
	case !ok:
		return true
	case have == Unlimited:
		return false
	case want == Unlimited:
		return true
	default:
		return want > have
	}
}
