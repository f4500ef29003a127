package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
	"github.com/nimasrn/poultry-ledger/pkg/redis"
	"github.com/pkg/errors"
)

const (
	fieldData     = "data"
	fieldEventID  = "event_id"
	fieldKind     = "kind"
	fieldAttempts = "attempts"
	fieldFailedAt = "failed_at"
	fieldOrigin   = "original_id"
	fieldReason   = "reason"
)

// Delivery is one read of a ledger event from the stream.
type Delivery struct {
	ID       string
	Event    *model.LedgerEvent
	Attempts int
}

// Handler processes a delivery. A nil return acknowledges it; an error
// leaves it pending so it is reclaimed after the visibility timeout.
type Handler func(ctx context.Context, d *Delivery) error

type Config struct {
	Stream            string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c Config) withDefaults() Config {
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "ledger-notifier"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	return c
}

// DeadLetterStream is the stream that receives events which exhausted
// their retries or could not be decoded.
func (c Config) DeadLetterStream() string {
	return c.Stream + ":dlq"
}

// Stream publishes ledger events to a Redis stream and consumes them
// through a consumer group.
type Stream struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

type Stats struct {
	Length      int64
	Pending     int64
	Consumers   int64
	DeadLetters int64
}

func NewStream(adapter redis.RedisAdapter, config Config) (*Stream, error) {
	if adapter == nil {
		return nil, errors.New("events: redis adapter is required")
	}
	if config.Stream == "" {
		return nil, errors.New("events: stream name is required")
	}
	config = config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *Stream) Config() Config {
	return s.config
}

// Publish appends the event to the stream.
func (s *Stream) Publish(ctx context.Context, e *model.LedgerEvent) error {
	if e == nil {
		return errors.New("events: nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "events: encode")
	}

	_, err = s.adapter.XAdd(ctx, s.config.Stream, map[string]interface{}{
		fieldData:    string(data),
		fieldEventID: e.ID,
		fieldKind:    string(e.Kind),
	})
	if err != nil {
		return errors.Wrap(err, "events: publish")
	}

	if s.config.MaxLen > 0 {
		if err := s.adapter.XTrimApprox(ctx, s.config.Stream, s.config.MaxLen); err != nil {
			logger.Warn("events: trim failed", "stream", s.config.Stream, "error", err)
		}
	}
	return nil
}

// Consume starts the background read loop. It may be called once.
func (s *Stream) Consume(handler Handler) error {
	if handler == nil {
		return errors.New("events: handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("events: consumer already started")
	}
	if err := s.adapter.XGroupCreateMkStream(s.ctx, s.config.Stream, s.config.ConsumerGroup, "0"); err != nil {
		return errors.Wrap(err, "events: create consumer group")
	}

	s.handler = handler
	s.started = true
	s.wg.Add(1)
	go s.consumeLoop()
	return nil
}

func (s *Stream) consumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.readNew()
			s.claimStuck()
		}
	}
}

func (s *Stream) readNew() {
	msgs, err := s.adapter.XReadGroup(s.ctx, s.config.ConsumerGroup, s.config.ConsumerName,
		s.config.Stream, s.config.BatchSize, 0)
	if err != nil {
		if err != redis.NilError && s.ctx.Err() == nil {
			logger.Warn("events: read failed", "stream", s.config.Stream, "error", err)
		}
		return
	}

	for _, msg := range msgs {
		s.handle(msg, 0)
	}
}

// claimStuck takes over entries that stayed pending longer than the
// visibility timeout. The delivery count recorded by Redis is the number
// of earlier attempts.
func (s *Stream) claimStuck() {
	pending, err := s.adapter.XPendingExt(s.ctx, s.config.Stream, s.config.ConsumerGroup, 100)
	if err != nil || len(pending) == 0 {
		return
	}

	attempts := make(map[string]int, len(pending))
	var ids []string
	for _, p := range pending {
		if p.Idle >= s.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			attempts[p.ID] = int(p.RetryCount)
		}
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := s.adapter.XClaim(s.ctx, s.config.Stream, s.config.ConsumerGroup,
		s.config.ConsumerName, s.config.VisibilityTimeout, ids...)
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Warn("events: claim failed", "stream", s.config.Stream, "error", err)
		}
		return
	}

	for _, msg := range msgs {
		s.handle(msg, attempts[msg.ID])
	}
}

func (s *Stream) handle(msg redis.StreamMessage, attempts int) {
	event, err := decode(msg)
	if err != nil {
		logger.Error("events: undecodable entry", "id", msg.ID, "error", err)
		s.deadLetter(msg, attempts, err.Error())
		s.ack(msg.ID)
		return
	}

	if attempts >= s.config.MaxRetries {
		logger.Warn("events: retries exhausted", "id", msg.ID, "event_id", event.ID, "attempts", attempts)
		s.deadLetter(msg, attempts, "max retries exceeded")
		s.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.VisibilityTimeout)
	defer cancel()

	d := &Delivery{ID: msg.ID, Event: event, Attempts: attempts}
	if err := s.handler(ctx, d); err != nil {
		logger.Debug("events: handler failed, leaving pending", "id", msg.ID, "event_id", event.ID, "error", err)
		return
	}
	s.ack(msg.ID)
}

func (s *Stream) ack(id string) {
	if err := s.adapter.XAck(context.Background(), s.config.Stream, s.config.ConsumerGroup, id); err != nil {
		logger.Warn("events: ack failed", "id", id, "error", err)
	}
}

func (s *Stream) deadLetter(msg redis.StreamMessage, attempts int, reason string) {
	if !s.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		fieldOrigin:   msg.ID,
		fieldAttempts: attempts,
		fieldFailedAt: time.Now().UTC().Format(time.RFC3339),
		fieldReason:   reason,
	}
	for _, k := range []string{fieldData, fieldEventID, fieldKind} {
		if v, ok := msg.Values[k]; ok {
			values[k] = v
		}
	}
	if _, err := s.adapter.XAdd(context.Background(), s.config.DeadLetterStream(), values); err != nil {
		logger.Error("events: dead-letter write failed", "id", msg.ID, "error", err)
		return
	}
	prom.DeadLettered()
}

// DeadLetters lists the events parked in the dead-letter stream.
func (s *Stream) DeadLetters(ctx context.Context) ([]*Delivery, error) {
	msgs, err := s.adapter.XRange(ctx, s.config.DeadLetterStream())
	if err != nil {
		return nil, errors.Wrap(err, "events: read dead letters")
	}

	out := make([]*Delivery, 0, len(msgs))
	for _, msg := range msgs {
		d := &Delivery{ID: msg.ID}
		if v, ok := msg.Values[fieldAttempts].(string); ok {
			d.Attempts, _ = strconv.Atoi(v)
		}
		if event, err := decode(msg); err == nil {
			d.Event = event
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Stream) Stats(ctx context.Context) (*Stats, error) {
	length, err := s.adapter.XLen(ctx, s.config.Stream)
	if err != nil {
		return nil, errors.Wrap(err, "events: stream length")
	}
	stats := &Stats{Length: length}

	if pending, err := s.adapter.XPending(ctx, s.config.Stream, s.config.ConsumerGroup); err == nil && pending != nil {
		stats.Pending = pending.Count
		stats.Consumers = int64(len(pending.Consumers))
	}
	if dlq, err := s.adapter.XLen(ctx, s.config.DeadLetterStream()); err == nil {
		stats.DeadLetters = dlq
	}
	return stats, nil
}

// Stop cancels the read loop and waits for the in-flight batch.
func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("events: timeout waiting for consumer to stop")
	}
}

func decode(msg redis.StreamMessage) (*model.LedgerEvent, error) {
	raw, ok := msg.Values[fieldData].(string)
	if !ok || raw == "" {
		return nil, errors.New("missing data field")
	}
	var e model.LedgerEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if e.ID == "" {
		return nil, errors.New("event has no id")
	}
	return &e, nil
}
