package entitlement

// Decision is the verdict for a single feature under a plan snapshot.
// It is computed per query and never persisted.
type Decision struct {
	FeatureKey string `json:"feature_key"`
	Allowed    bool   `json:"allowed"`
	Limit      Value  `json:"limit"`
	Unlimited  bool   `json:"is_unlimited"`
}

// Decide evaluates feature for plan without a usage count. Quotas act as a
// probe: the feature is allowed when the plan grants any quota at all.
func Decide(plan *Plan, feature string) Decision {
	return decide(plan, feature, 0, false)
}

// DecideUsage evaluates feature for plan given the subscriber's current usage.
// A quota n allows the next unit only while current < n.
func DecideUsage(plan *Plan, feature string, current int64) Decision {
	return decide(plan, feature, current, true)
}

// decide is a pure function of its inputs. Check order matters: booleans are
// resolved before any numeric branch and the unlimited sentinel before the
// quota comparison.
func decide(plan *Plan, feature string, current int64, counted bool) Decision {
	denied := Decision{FeatureKey: feature, Limit: Bool(false)}
	if plan == nil {
		return denied
	}

	value, ok := plan.Features[feature]
	if !ok {
		return denied
	}
	// A quota key holding anything but a quota is malformed data.
	if IsQuotaFeature(feature) && value.Kind() != KindQuota {
		return denied
	}

	switch value.Kind() {
	case KindBool:
		b, _ := value.AsBool()
		return Decision{FeatureKey: feature, Allowed: b, Limit: value}

	case KindQuota:
		n, _ := value.AsQuota()
		if n == Unlimited {
			return Decision{FeatureKey: feature, Allowed: true, Limit: value, Unlimited: true}
		}
		if n < 0 {
			return denied
		}
		allowed := n > 0
		if counted {
			allowed = current < n
		}
		return Decision{FeatureKey: feature, Allowed: allowed, Limit: value}

	case KindTier:
		s, _ := value.AsTier()
		return Decision{FeatureKey: feature, Allowed: s != "" && s != "false", Limit: value}

	default:
		return denied
	}
}

// GetLimit returns the raw feature value for display, or Bool(false) when absent.
// It does not decide access; use Decide for that.
func GetLimit(plan *Plan, feature string) Value {
	if plan == nil {
		return Bool(false)
	}
	if v, ok := plan.Features[feature]; ok {
		return v
	}
	return Bool(false)
}

// IsUnlimited reports whether the raw value is exactly Quota(Unlimited).
func IsUnlimited(plan *Plan, feature string) bool {
	n, ok := GetLimit(plan, feature).AsQuota()
	return ok && n == Unlimited
}
