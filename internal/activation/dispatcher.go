package activation

import (
	"context"
	"time"

	appctx "activatable/internal/core/context"
	"activatable/internal/core/id"
	"activatable/internal/core/tx"
	"activatable/pkg/logger"
)

// Recorder persists an event inside the transaction that produced it
// (the transactional outbox).
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Dispatcher emits activation events for mutations running in a transaction.
// Events are recorded immediately and sent once the outermost transaction commits,
// so a rolled back mutation is never announced.
type Dispatcher struct {
	signals  *Signals
	txm      tx.Manager
	recorder Recorder
	log      *logger.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder stores every emitted event through r before commit.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithLogger sets the logger used for receiver failures after commit.
func WithLogger(l *logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

func NewDispatcher(signals *Signals, txm tx.Manager, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		signals: signals,
		txm:     txm,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("activation")
	return d
}

// Signals returns the signals this dispatcher sends on.
func (d *Dispatcher) Signals() *Signals {
	return d.signals
}

// Changed schedules an activation changed event.
func (d *Dispatcher) Changed(ctx context.Context, model string, ids []id.ID, isActive bool) error {
	return d.emit(ctx, d.signals.Changed, model, ids, isActive)
}

// Updated schedules an activation updated event.
func (d *Dispatcher) Updated(ctx context.Context, model string, ids []id.ID, isActive bool) error {
	return d.emit(ctx, d.signals.Updated, model, ids, isActive)
}

func (d *Dispatcher) emit(ctx context.Context, sig *Signal, model string, ids []id.ID, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}

	ev := Event{
		Kind:        sig.Kind(),
		Model:       model,
		InstanceIDs: append([]id.ID(nil), ids...),
		IsActive:    isActive,
		Actor:       appctx.GetActorID(ctx),
		OccurredAt:  time.Now().UTC(),
	}

	if d.recorder != nil {
		if err := d.recorder.Record(ctx, ev); err != nil {
			return err
		}
	}

	d.txm.AfterCommit(ctx, func(ctx context.Context) {
		if err := sig.Send(ctx, ev); err != nil {
			d.log.WithContext(ctx).Warnw("activation event delivered with errors",
				"signal", ev.Kind, "model", ev.Model, "error", err)
		}
	})
	return nil
}
