package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
)

// EventPublisher receives ledger events after successful writes. A nil
// publisher disables notifications.
type EventPublisher interface {
	Publish(ctx context.Context, e *model.LedgerEvent) error
}

// publish never fails the calling operation; delivery problems are logged.
func publish(ctx context.Context, pub EventPublisher, kind model.EventKind, entityID string, payload any) {
	if pub == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("failed to encode ledger event", "kind", kind, "entity_id", entityID, "error", err)
		return
	}

	e := &model.LedgerEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	err = pub.Publish(context.WithoutCancel(ctx), e)
	prom.EventPublished(string(kind), err == nil)
	if err != nil {
		logger.Warn("failed to publish ledger event", "kind", kind, "entity_id", entityID, "error", err)
	}
}
