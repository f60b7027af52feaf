package events

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/procure-to-pay/pkg/logger"
)

// AuditLogger writes one structured line per workflow event.
func AuditLogger(base *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.FromOr(ctx, base).Info("audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
}
