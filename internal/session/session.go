// Package session implements the per-user conversational session store
// (spec §4.2): a key/value store of (state, data) per normalized phone,
// backed by Redis with a sliding TTL, degrading gracefully to an
// in-process map when Redis is unreachable. Grounded on the teacher's
// utils/redis_client.go connection-pool setup and services/queue_service.go's
// per-user Redis hash usage (user:queue:<event>:<user> HSET/HGet), adapted
// from per-event queue state to per-user conversation state.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type State string

const (
	StateIdle                  State = "IDLE"
	StateSelectingCategory     State = "SELECTING_CATEGORY"
	StateBrowsingEvents        State = "BROWSING_EVENTS"
	StateSelectingTier         State = "SELECTING_TIER"
	StateSelectingQuantity     State = "SELECTING_QUANTITY"
	StateAwaitingPaymentMethod State = "AWAITING_PAYMENT_METHOD"
	StateAwaitingPaymentPhone  State = "AWAITING_PAYMENT_PHONE"
	StateAwaitingSTKPush       State = "AWAITING_STK_PUSH"
)

// Recognized data-bag keys (spec §3).
const (
	KeyEventID          = "eventId"
	KeySelectedCategory = "selectedCategory"
	KeyTierID           = "tierId"
	KeyQuantity         = "quantity"
	KeyTotalAmount      = "totalAmount"
	KeyPaymentMethod    = "paymentMethod"
	KeyTempBookingID    = "tempBookingId"
)

type Session struct {
	State State                  `json:"state"`
	Data  map[string]interface{} `json:"data"`
}

func empty() Session {
	return Session{State: StateIdle, Data: map[string]interface{}{}}
}

// Store is the contract consumed by the conversation controller. Get never
// errors: a missing or unreachable session degrades to an empty IDLE
// session, per spec §4.2.
type Store interface {
	Get(ctx context.Context, phone string) Session
	Update(ctx context.Context, phone string, state State, dataPatch map[string]interface{}) error
	Clear(ctx context.Context, phone string) error
}

type entry struct {
	session   Session
	expiresAt time.Time
}

// RedisStore is the primary session store. On Redis failure it falls back
// to an in-process map — a last-resort availability mechanism that does
// not survive process restarts and destroys affinity across a
// multi-process deployment. Operators should treat fallback-active
// periods as degraded (spec §4.2, §9).
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration

	mu       sync.Mutex
	fallback map[string]entry
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:    client,
		ttl:      ttl,
		fallback: make(map[string]entry),
	}
}

func key(phone string) string {
	return "session:" + phone
}

func (s *RedisStore) Get(ctx context.Context, phone string) Session {
	raw, err := s.redis.Get(ctx, key(phone)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("session: redis Get failed for %s, falling back to in-process map: %v", mask(phone), err)
			return s.fallbackGet(phone)
		}
		return empty()
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		log.Printf("session: corrupt session for %s, resetting: %v", mask(phone), err)
		return empty()
	}
	return sess
}

func (s *RedisStore) Update(ctx context.Context, phone string, state State, dataPatch map[string]interface{}) error {
	current := s.Get(ctx, phone)
	current.State = state
	if current.Data == nil {
		current.Data = map[string]interface{}{}
	}
	for k, v := range dataPatch {
		current.Data[k] = v
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, key(phone), raw, s.ttl).Err(); err != nil {
		log.Printf("session: redis Set failed for %s, falling back to in-process map: %v", mask(phone), err)
		s.fallbackSet(phone, current)
		return nil
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, phone string) error {
	return s.Update(ctx, phone, StateIdle, map[string]interface{}{})
}

func (s *RedisStore) fallbackGet(phone string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.fallback[phone]
	if !ok || time.Now().After(e.expiresAt) {
		return empty()
	}
	return e.session
}

func (s *RedisStore) fallbackSet(phone string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	s.fallback[phone] = entry{session: sess, expiresAt: time.Now().Add(s.ttl)}
}

// sweepLocked purges expired fallback entries lazily, on every access,
// since the fallback map is never the primary store and must not
// accumulate unboundedly. Caller must hold s.mu.
func (s *RedisStore) sweepLocked() {
	now := time.Now()
	for k, e := range s.fallback {
		if now.After(e.expiresAt) {
			delete(s.fallback, k)
		}
	}
}

func mask(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return phone[:3] + "***" + phone[len(phone)-2:]
}
