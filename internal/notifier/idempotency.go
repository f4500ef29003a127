package notifier

import (
	"context"
	"strconv"
	"time"

	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
	"github.com/pkg/errors"
)

var (
	ErrAlreadyDelivered = errors.New("event already delivered")
	ErrLockHeld         = errors.New("event is being delivered by another consumer")
)

type IdempotencyConfig struct {
	// LockTTL bounds how long a crashed consumer can block an event.
	LockTTL time.Duration
	// DeliveredTTL is how long a delivered marker suppresses redelivery.
	DeliveredTTL time.Duration
	KeyPrefix    string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:      30 * time.Second,
		DeliveredTTL: 24 * time.Hour,
		KeyPrefix:    "notifier:",
	}
}

// Idempotency guarantees an event id is delivered at most once while its
// marker lives, even when several consumers read the same entry.
type Idempotency struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotency(adapter redis.RedisAdapter, config IdempotencyConfig) *Idempotency {
	def := DefaultIdempotencyConfig()
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	if config.DeliveredTTL <= 0 {
		config.DeliveredTTL = def.DeliveredTTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	return &Idempotency{redis: adapter, config: config}
}

// Claim is a held delivery lock for one event.
type Claim struct {
	EventID string
	held    bool
}

func (s *Idempotency) lockKey(id string) string      { return s.config.KeyPrefix + "lock:" + id }
func (s *Idempotency) deliveredKey(id string) string { return s.config.KeyPrefix + "delivered:" + id }

func (s *Idempotency) Acquire(ctx context.Context, eventID string) (*Claim, error) {
	delivered, err := s.redis.Exist(ctx, s.deliveredKey(eventID))
	if err != nil {
		return nil, errors.Wrap(err, "check delivered marker")
	}
	if delivered {
		return nil, ErrAlreadyDelivered
	}

	token := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	ok, err := s.redis.SetNX(ctx, s.lockKey(eventID), token, s.config.LockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire delivery lock")
	}
	if !ok {
		return nil, ErrLockHeld
	}

	logger.Debug("delivery lock acquired", "event_id", eventID, "lock_ttl", s.config.LockTTL)
	return &Claim{EventID: eventID, held: true}, nil
}

// MarkDelivered records the event as settled and drops the lock.
func (s *Idempotency) MarkDelivered(ctx context.Context, c *Claim) error {
	if err := s.redis.Set(ctx, s.deliveredKey(c.EventID), []byte("1"), s.config.DeliveredTTL); err != nil {
		return errors.Wrap(err, "set delivered marker")
	}
	return s.Release(ctx, c)
}

// Release drops the lock so another attempt can run.
func (s *Idempotency) Release(ctx context.Context, c *Claim) error {
	if c == nil || !c.held {
		return nil
	}
	if err := s.redis.Del(ctx, s.lockKey(c.EventID)); err != nil {
		logger.Warn("failed to release delivery lock", "event_id", c.EventID, "error", err)
		return err
	}
	c.held = false
	return nil
}

func (s *Idempotency) IsDelivered(ctx context.Context, eventID string) (bool, error) {
	return s.redis.Exist(ctx, s.deliveredKey(eventID))
}
