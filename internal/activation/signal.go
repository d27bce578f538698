// Package activation announces changes of the active flag on activatable records.
//
// Two signals exist. Changed fires for records whose flag actually flipped (creation
// counts as a flip). Updated fires for every record a bulk update touched through the
// flag column, whether or not its value changed.
package activation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"activatable/internal/core/id"
	"activatable/pkg/logger"
)

var tracer = otel.Tracer("activatable/activation")

// Kind names a signal.
type Kind string

const (
	KindChanged Kind = "activation.changed"
	KindUpdated Kind = "activation.updated"
)

// Event is the payload delivered to receivers.
type Event struct {
	Kind        Kind      `json:"kind"`
	Model       string    `json:"model"`
	InstanceIDs []id.ID   `json:"instanceIds"`
	IsActive    bool      `json:"isActive"`
	Actor       string    `json:"actor,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Receiver handles events of a signal.
type Receiver interface {
	Receive(ctx context.Context, ev Event) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, ev Event) error

func (f ReceiverFunc) Receive(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// ConnectOption configures a receiver registration.
type ConnectOption func(*registration)

// Sender restricts the receiver to events of one record type.
func Sender(model string) ConnectOption {
	return func(r *registration) {
		r.sender = model
	}
}

// DispatchUID identifies the registration. Connecting twice with the same UID keeps
// the first receiver.
func DispatchUID(uid string) ConnectOption {
	return func(r *registration) {
		r.uid = uid
	}
}

type registration struct {
	uid      string
	sender   string
	receiver Receiver
}

// Signal is a list of receivers invoked synchronously in registration order.
type Signal struct {
	kind Kind

	mu        sync.RWMutex
	receivers []registration
}

// NewSignal creates an empty signal of the given kind.
func NewSignal(kind Kind) *Signal {
	return &Signal{kind: kind}
}

// Kind returns the signal kind stamped on sent events.
func (s *Signal) Kind() Kind {
	return s.kind
}

// Connect registers r and returns the dispatch UID it is stored under.
func (s *Signal) Connect(r Receiver, opts ...ConnectOption) string {
	reg := registration{receiver: r}
	for _, opt := range opts {
		opt(&reg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reg.uid == "" {
		reg.uid = id.New().String()
	}
	for _, existing := range s.receivers {
		if existing.uid == reg.uid {
			return reg.uid
		}
	}
	s.receivers = append(s.receivers, reg)
	return reg.uid
}

// Disconnect removes the receiver stored under uid.
func (s *Signal) Disconnect(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, reg := range s.receivers {
		if reg.uid == uid {
			s.receivers = append(s.receivers[:i:i], s.receivers[i+1:]...)
			return true
		}
	}
	return false
}

// HasReceivers reports whether any receiver would get an event for model.
func (s *Signal) HasReceivers(model string) bool {
	return len(s.matching(model)) > 0
}

func (s *Signal) matching(model string) []registration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []registration
	for _, reg := range s.receivers {
		if reg.sender == "" || reg.sender == model {
			out = append(out, reg)
		}
	}
	return out
}

// Send delivers ev to every matching receiver. A failing receiver does not stop the
// others; failures are logged and returned joined.
func (s *Signal) Send(ctx context.Context, ev Event) error {
	ev.Kind = s.kind
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	receivers := s.matching(ev.Model)
	if len(receivers) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, string(s.kind),
		trace.WithAttributes(
			attribute.String("activation.model", ev.Model),
			attribute.Bool("activation.is_active", ev.IsActive),
			attribute.Int("activation.count", len(ev.InstanceIDs)),
		))
	defer span.End()

	var errs []error
	for _, reg := range receivers {
		if err := reg.receiver.Receive(ctx, ev); err != nil {
			logger.Error(ctx, "activation receiver failed",
				"signal", s.kind, "model", ev.Model, "receiver", reg.uid, "error", err)
			errs = append(errs, fmt.Errorf("receiver %s: %w", reg.uid, err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receiver failed")
	}
	return err
}

// Signals groups the two activation signals.
type Signals struct {
	Changed *Signal
	Updated *Signal
}

// NewSignals creates both signals with no receivers.
func NewSignals() *Signals {
	return &Signals{
		Changed: NewSignal(KindChanged),
		Updated: NewSignal(KindUpdated),
	}
}

// Get returns the signal of the given kind, or nil.
func (s *Signals) Get(kind Kind) *Signal {
	switch kind {
	case KindChanged:
		return s.Changed
	case KindUpdated:
		return s.Updated
	}
	return nil
}
