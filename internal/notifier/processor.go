package notifier

import (
	"context"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/events"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/webhook"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
	"github.com/pkg/errors"
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

// Deliverer sends one event to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, e *model.LedgerEvent) error
}

// Processor handles one stream delivery. A nil return acknowledges it.
type Processor interface {
	Process(ctx context.Context, d *events.Delivery) error
}

// WebhookProcessor forwards ledger events to the webhook exactly once per
// event id.
type WebhookProcessor struct {
	client      Deliverer
	idempotency *Idempotency
	metrics     *ServiceMetrics
}

func NewWebhookProcessor(client Deliverer, idempotency *Idempotency, metrics *ServiceMetrics) *WebhookProcessor {
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	return &WebhookProcessor{client: client, idempotency: idempotency, metrics: metrics}
}

func (p *WebhookProcessor) Metrics() *ServiceMetrics {
	return p.metrics
}

func (p *WebhookProcessor) Process(ctx context.Context, d *events.Delivery) error {
	e := d.Event

	claim, err := p.idempotency.Acquire(ctx, e.ID)
	switch {
	case errors.Is(err, ErrAlreadyDelivered):
		logger.Info("event already delivered, skipping", "event_id", e.ID)
		p.metrics.RecordSkipped()
		return nil
	case errors.Is(err, ErrLockHeld):
		return err
	case err != nil:
		logger.Error("failed to acquire delivery lock", "event_id", e.ID, "error", err)
		return err
	}
	defer func() { _ = p.idempotency.Release(ctx, claim) }()

	logger.Info("delivering event", "event_id", e.ID, "kind", e.Kind, "entity_id", e.EntityID,
		"attempt", d.Attempts+1)

	start := time.Now()
	err = p.client.Deliver(ctx, e)
	elapsed := time.Since(start)

	if err != nil {
		if webhook.IsPermanent(err) {
			// 4xx responses are settled without retry
			logger.Error("webhook rejected event", "event_id", e.ID, "kind", e.Kind, "error", err)
			p.metrics.RecordRejected()
			prom.WebhookDelivered(string(e.Kind), outcomeRejected, elapsed)
			p.settle(ctx, claim)
			return nil
		}
		logger.Warn("webhook delivery failed", "event_id", e.ID, "attempt", d.Attempts+1, "error", err)
		p.metrics.RecordFailure()
		prom.WebhookDelivered(string(e.Kind), outcomeFailed, elapsed)
		return err
	}

	p.metrics.RecordDelivered(elapsed)
	prom.WebhookDelivered(string(e.Kind), outcomeDelivered, elapsed)
	p.settle(ctx, claim)
	return nil
}

func (p *WebhookProcessor) settle(ctx context.Context, claim *Claim) {
	if err := p.idempotency.MarkDelivered(ctx, claim); err != nil {
		logger.Error("failed to mark event delivered", "event_id", claim.EventID, "error", err)
	}
}
