package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/pg"
)

const subscriptionColumns = `id, subscriber_id, plan_id, status, current_period_start, current_period_end,
	cancel_at_period_end, provider_subscription_id, provider_customer_id, created_at, updated_at, canceled_at`

// PGStore is the PostgreSQL Store. Schema lives in internal/db/migrations.
type PGStore struct {
	db pg.DBTX
}

func NewPGStore(db pg.DBTX) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Current(ctx context.Context, subscriberID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE subscriber_id = $1 AND status IN ('active', 'trialing')
		ORDER BY created_at DESC
		LIMIT 1`, subscriberID)
	return s.one(row)
}

func (s *PGStore) GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error) {
	if providerSubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE provider_subscription_id = $1`, providerSubID)
	return s.one(row)
}

func (s *PGStore) Create(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.ID == uuid.Nil {
		return ErrInvalidSubscription
	}
	_, err := s.db.Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.SubscriberID, sub.PlanID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, nullable(sub.ProviderSubID), nullable(sub.ProviderCustomerID),
		sub.CreatedAt, sub.UpdatedAt, sub.CanceledAt)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrSubscriptionAlreadyExists, err)
	}
	if pg.IsForeignKeyViolationError(err) {
		return errors.Join(entitlement.ErrPlanNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	tag, err := s.db.Exec(ctx, `UPDATE subscriptions SET
			plan_id = $2, status = $3, current_period_start = $4, current_period_end = $5,
			cancel_at_period_end = $6, provider_subscription_id = $7, provider_customer_id = $8,
			updated_at = $9, canceled_at = $10
		WHERE id = $1`,
		sub.ID, sub.PlanID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, nullable(sub.ProviderSubID), nullable(sub.ProviderCustomerID),
		sub.UpdatedAt, sub.CanceledAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PGStore) History(ctx context.Context, subscriberID uuid.UUID) ([]Subscription, error) {
	rows, err := s.db.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE subscriber_id = $1
		ORDER BY created_at DESC`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Subscription, error) {
		return scanSubscription(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PGStore) one(row pgx.Row) (*Subscription, error) {
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var (
		sub                   Subscription
		providerSub, customer *string
	)
	err := row.Scan(&sub.ID, &sub.SubscriberID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&providerSub, &customer, &sub.CreatedAt, &sub.UpdatedAt, &sub.CanceledAt)
	if err != nil {
		return Subscription{}, err
	}
	if providerSub != nil {
		sub.ProviderSubID = *providerSub
	}
	if customer != nil {
		sub.ProviderCustomerID = *customer
	}
	return sub, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PGPlanSource loads the plan catalog from the plans table.
// Features are stored as a JSONB object of feature key to value.
type PGPlanSource struct {
	db pg.DBTX
}

func NewPGPlanSource(db pg.DBTX) *PGPlanSource {
	return &PGPlanSource{db: db}
}

func (s *PGPlanSource) LoadPlans(ctx context.Context) ([]entitlement.Plan, error) {
	rows, err := s.db.Query(ctx, `SELECT id, slug, name, price_minor_units, currency,
			COALESCE(price_ref, ''), features, is_active
		FROM plans
		ORDER BY price_minor_units, id`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (entitlement.Plan, error) {
		var (
			p        entitlement.Plan
			features []byte
		)
		if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.PriceMinorUnits, &p.Currency,
			&p.PriceRef, &features, &p.IsActive); err != nil {
			return entitlement.Plan{}, err
		}
		decoded, err := DecodeFeatures(features)
		if err != nil {
			return entitlement.Plan{}, fmt.Errorf("plan %s: %w", p.ID, err)
		}
		p.Features = decoded
		return p, nil
	})
}

// SavePlans upserts plans by id. Run it inside pg.WithTx to replace a
// catalog atomically.
func (s *PGPlanSource) SavePlans(ctx context.Context, plans []entitlement.Plan) error {
	for _, p := range plans {
		features, err := json.Marshal(p.Features)
		if err != nil {
			return fmt.Errorf("encode features of plan %s: %w", p.ID, err)
		}
		_, err = s.db.Exec(ctx, `INSERT INTO plans
				(id, slug, name, price_minor_units, currency, price_ref, features, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				slug = EXCLUDED.slug,
				name = EXCLUDED.name,
				price_minor_units = EXCLUDED.price_minor_units,
				currency = EXCLUDED.currency,
				price_ref = EXCLUDED.price_ref,
				features = EXCLUDED.features,
				is_active = EXCLUDED.is_active,
				updated_at = now()`,
			p.ID, p.Slug, p.Name, p.PriceMinorUnits, p.Currency, nullable(p.PriceRef), features, p.IsActive)
		if err != nil {
			return fmt.Errorf("upsert plan %s: %w", p.ID, err)
		}
	}
	return nil
}

// DecodeFeatures parses a stored feature object. NULL or empty input yields
// an empty map, which denies every feature.
func DecodeFeatures(raw []byte) (map[string]entitlement.Value, error) {
	features := make(map[string]entitlement.Value)
	if len(raw) == 0 {
		return features, nil
	}
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, err
	}
	if features == nil {
		features = make(map[string]entitlement.Value)
	}
	return features, nil
}
