package entitlement

import "errors"

var (
	// Catalog errors
	ErrInvalidCatalog     = errors.New("entitlement.errors.invalid_catalog")
	ErrEmptyCatalog       = errors.New("entitlement.errors.empty_catalog")
	ErrDuplicatePlan      = errors.New("entitlement.errors.duplicate_plan")
	ErrUnknownSlug        = errors.New("entitlement.errors.unknown_slug")
	ErrNegativePrice      = errors.New("entitlement.errors.negative_price")
	ErrFreePlanMissing    = errors.New("entitlement.errors.free_plan_missing")
	ErrFreePlanInactive   = errors.New("entitlement.errors.free_plan_inactive")
	ErrFreePlanNotFree    = errors.New("entitlement.errors.free_plan_not_free")
	ErrPriceOrder         = errors.New("entitlement.errors.price_order")
	ErrTierNotSuperset    = errors.New("entitlement.errors.tier_not_superset")
	ErrMalformedFeature   = errors.New("entitlement.errors.malformed_feature")
	ErrCatalogUnavailable = errors.New("entitlement.errors.catalog_unavailable")
	ErrPlanNotFound       = errors.New("entitlement.errors.plan_not_found")

	// Usage counter errors
	ErrNoCounterRegistered       = errors.New("entitlement.errors.no_counter_registered")
	ErrFailedToCountFeatureUsage = errors.New("entitlement.errors.failed_to_count_feature_usage")

	// Upgrade prompt errors
	ErrFeatureAllowed = errors.New("entitlement.errors.feature_allowed")
)
