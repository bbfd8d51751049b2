package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-partyshop/internal/cache"
)

// Slot names a persisted checkout value.
type Slot string

const (
	SlotDeliveryInfo       Slot = "delivery_info"
	SlotLastOrder          Slot = "last_order"
	SlotGroupOrderDelivery Slot = "group_order_delivery"
	SlotGroupOrderOriginal Slot = "group_order_original"
	SlotGroupOrderToken    Slot = "group_order_token"
	SlotAddToOrder         Slot = "add_to_order"
	SlotJoinDecision       Slot = "join_decision"
	SlotAppliedDiscount    Slot = "applied_discount"
	SlotCart               Slot = "cart"
)

// GroupSlots are the slots a group-order join writes and an opt-out clears.
var GroupSlots = []Slot{SlotGroupOrderDelivery, SlotGroupOrderOriginal, SlotGroupOrderToken, SlotAddToOrder}

var (
	// ErrNotFound is returned when the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrEmpty is returned by Store.Get for an unset slot.
	ErrEmpty = errors.New("session slot empty")
)

// Store persists named slots per session.
type Store interface {
	Create(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Get(ctx context.Context, sessionID string, slot Slot) ([]byte, error)
	Set(ctx context.Context, sessionID string, slot Slot, value []byte) error
	Clear(ctx context.Context, sessionID string, slots ...Slot) error
}

const createdField = "created_at"

// RedisStore keeps each session in one tenant-prefixed hash with a sliding TTL.
type RedisStore struct {
	R      redis.UniversalClient
	TTL    time.Duration
	writes metric.Int64Counter
}

// NewRedisStore builds a RedisStore and registers its slot-write counter.
func NewRedisStore(r redis.UniversalClient, ttl time.Duration) *RedisStore {
	counter, err := otel.Meter("partyshop/session").Int64Counter(
		"session.slot.writes",
		metric.WithDescription("Session slot writes and clears."),
	)
	if err != nil {
		counter = nil
	}
	return &RedisStore{R: r, TTL: ttl, writes: counter}
}

func (s *RedisStore) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 72 * time.Hour
	}
	return s.TTL
}

func key(ctx context.Context, sessionID string) string {
	return cache.KeySession(ctx, sessionID)
}

// Create initialises an empty session.
func (s *RedisStore) Create(ctx context.Context, sessionID string) error {
	k := key(ctx, sessionID)
	pipe := s.R.TxPipeline()
	pipe.HSet(ctx, k, createdField, time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, k, s.ttl())
	_, err := pipe.Exec(ctx)
	return err
}

// Exists reports whether the session is live.
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.R.Exists(ctx, key(ctx, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the raw slot value or ErrEmpty.
func (s *RedisStore) Get(ctx context.Context, sessionID string, slot Slot) ([]byte, error) {
	v, err := s.R.HGet(ctx, key(ctx, sessionID), string(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	return v, err
}

// Set writes the slot and refreshes the session TTL.
func (s *RedisStore) Set(ctx context.Context, sessionID string, slot Slot, value []byte) error {
	k := key(ctx, sessionID)
	pipe := s.R.TxPipeline()
	pipe.HSet(ctx, k, string(slot), value)
	pipe.Expire(ctx, k, s.ttl())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.record(ctx, "set", slot)
	return nil
}

// Clear removes the given slots.
func (s *RedisStore) Clear(ctx context.Context, sessionID string, slots ...Slot) error {
	if len(slots) == 0 {
		return nil
	}
	fields := make([]string, 0, len(slots))
	for _, slot := range slots {
		fields = append(fields, string(slot))
	}
	if err := s.R.HDel(ctx, key(ctx, sessionID), fields...).Err(); err != nil {
		return err
	}
	for _, slot := range slots {
		s.record(ctx, "clear", slot)
	}
	return nil
}

func (s *RedisStore) record(ctx context.Context, op string, slot Slot) {
	if s.writes == nil {
		return
	}
	s.writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("slot", string(slot)),
	))
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[Slot][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[Slot][]byte{}}
}

func (m *MemoryStore) Create(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key(ctx, sessionID)] = map[Slot][]byte{}
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key(ctx, sessionID)]
	return ok, nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string, slot Slot) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key(ctx, sessionID)][slot]
	if !ok {
		return nil, ErrEmpty
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(ctx context.Context, sessionID string, slot Slot, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(ctx, sessionID)
	if m.data[k] == nil {
		m.data[k] = map[Slot][]byte{}
	}
	m.data[k][slot] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string, slots ...Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slots {
		delete(m.data[key(ctx, sessionID)], slot)
	}
	return nil
}
