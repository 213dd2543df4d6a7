package usage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planguard/pkg/pg"
)

type counterKey struct {
	subscriberID uuid.UUID
	feature      string
	period       string
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[counterKey]int64)}
}

func (s *MemoryStore) Get(_ context.Context, subscriberID uuid.UUID, feature, period string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counterKey{subscriberID, feature, period}], nil
}

func (s *MemoryStore) Add(_ context.Context, subscriberID uuid.UUID, feature, period string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := counterKey{subscriberID, feature, period}
	n := max(s.counters[k]+delta, 0)
	s.counters[k] = n
	return n, nil
}

// PGStore keeps counters in the usage_counters table.
type PGStore struct {
	db pg.DBTX
}

func NewPGStore(db pg.DBTX) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, subscriberID uuid.UUID, feature, period string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT used FROM usage_counters
		WHERE subscriber_id = $1 AND feature = $2 AND period = $3`,
		subscriberID, feature, period,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (s *PGStore) Add(ctx context.Context, subscriberID uuid.UUID, feature, period string, delta int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `INSERT INTO usage_counters (subscriber_id, feature, period, used)
		VALUES ($1, $2, $3, GREATEST($4::bigint, 0))
		ON CONFLICT (subscriber_id, feature, period)
		DO UPDATE SET used = GREATEST(usage_counters.used + $4::bigint, 0), updated_at = now()
		RETURNING used`,
		subscriberID, feature, period, delta,
	).Scan(&n)
	return n, err
}
