package activation

import (
	"context"

	"activatable/internal/core/id"
	"activatable/pkg/logger"
)

// LogReceiver writes every event to the structured log.
type LogReceiver struct {
	log *logger.Logger
}

func NewLogReceiver(log *logger.Logger) *LogReceiver {
	return &LogReceiver{log: log.WithComponent("activation")}
}

func (r *LogReceiver) Receive(ctx context.Context, ev Event) error {
	r.log.WithContext(ctx).Infow("activation event",
		"signal", ev.Kind,
		"model", ev.Model,
		"is_active", ev.IsActive,
		"count", len(ev.InstanceIDs),
		"ids", id.Strings(ev.InstanceIDs),
	)
	return nil
}
