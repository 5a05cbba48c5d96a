package events

import (
	"context"
	"log/slog"

	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// LogPublisher records events in the log when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, e ports.Event) error {
	p.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"owner_id", e.OwnerID,
		"entity_id", e.EntityID,
		"occurred_at", e.OccurredAt,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
