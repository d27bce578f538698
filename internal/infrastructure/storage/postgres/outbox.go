package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"activatable/internal/activation"
	"activatable/internal/core/id"
	"activatable/internal/infrastructure/notify"
	"activatable/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultMaxRetries is the number of failed deliveries after which a message is parked.
const DefaultMaxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // record type, e.g. "Warehouse"
	AggregateID   id.ID        `db:"aggregate_id"`   // first instance of the event
	EventType     string       `db:"event_type"`     // activation.changed or activation.updated
	Payload       []byte       `db:"payload"`        // JSON activation.Event
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Event decodes the stored activation event.
func (m *OutboxMessage) Event() (activation.Event, error) {
	var ev activation.Event
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode outbox payload %s: %w", m.ID, err)
	}
	return ev, nil
}

// newOutboxMessage builds the pending row for ev.
func newOutboxMessage(ev activation.Event) (OutboxMessage, error) {
	if len(ev.InstanceIDs) == 0 {
		return OutboxMessage{}, fmt.Errorf("outbox event %s for %s has no instances", ev.Kind, ev.Model)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal event payload: %w", err)
	}

	createdAt := ev.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return OutboxMessage{
		ID:            id.New(),
		AggregateType: ev.Model,
		AggregateID:   ev.InstanceIDs[0],
		EventType:     string(ev.Kind),
		Payload:       payload,
		Status:        OutboxStatusPending,
		CreatedAt:     createdAt,
	}, nil
}

// OutboxPublisher writes activation events to the outbox table.
// It implements activation.Recorder.
type OutboxPublisher struct {
	txManager *TxManager
	filter    *activation.Condition
}

// OutboxOption configures an OutboxPublisher.
type OutboxOption func(*OutboxPublisher)

// WithOutboxFilter stores only events matching cond.
func WithOutboxFilter(cond *activation.Condition) OutboxOption {
	return func(p *OutboxPublisher) {
		p.filter = cond
	}
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager, opts ...OutboxOption) *OutboxPublisher {
	p := &OutboxPublisher{txManager: txManager}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// accepts reports whether ev passes the configured filter.
func (p *OutboxPublisher) accepts(ev activation.Event) (bool, error) {
	if p.filter == nil {
		return true, nil
	}
	return p.filter.Match(ev)
}

// Record writes ev to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Record(ctx context.Context, ev activation.Event) error {
	ok, err := p.accepts(ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	msg, err := newOutboxMessage(ev)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	// Delivered on commit; wakes the relay instead of waiting for its next poll.
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notify.OutboxChannel, msg.AggregateType); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}

	return nil
}

var _ activation.Recorder = (*OutboxPublisher)(nil)

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// SignalHandler redelivers stored events to the receivers connected to signals.
type SignalHandler struct {
	signals *activation.Signals
}

func NewSignalHandler(signals *activation.Signals) *SignalHandler {
	return &SignalHandler{signals: signals}
}

// Handle implements OutboxHandler.
func (h *SignalHandler) Handle(ctx context.Context, msg *OutboxMessage) error {
	ev, err := msg.Event()
	if err != nil {
		return err
	}

	sig := h.signals.Get(activation.Kind(msg.EventType))
	if sig == nil {
		return fmt.Errorf("unknown event type %q", msg.EventType)
	}
	return sig.Send(ctx, ev)
}

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to deliver events outside the request path.
type OutboxRelay struct {
	pool       *pgxpool.Pool
	batchSize  int
	maxRetries int
	handler    OutboxHandler
	log        *logger.Logger
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *pgxpool.Pool, batchSize int, handler OutboxHandler, log *logger.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		pool:       pool,
		batchSize:  batchSize,
		maxRetries: DefaultMaxRetries,
		handler:    handler,
		log:        log.WithComponent("outbox"),
	}
}

// ProcessBatch fetches and processes pending messages.
// The batch runs in one transaction so the row locks keep concurrent workers
// off the same messages until their status is written. Delivery is at least once.
// Returns number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var messages []*OutboxMessage
	err = pgxscan.Select(ctx, tx, &messages, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		delivered, err := r.processMessage(ctx, tx, msg)
		if err != nil {
			return processed, err
		}
		if delivered {
			processed++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return processed, nil
}

// nextRetryAt grows the delay linearly with the number of attempts.
func nextRetryAt(now time.Time, retryCount int) time.Time {
	return now.Add(time.Duration(retryCount+1) * time.Minute)
}

// processMessage hands msg to the handler and records the outcome. A handler
// failure is logged and scheduled for retry; only bookkeeping errors are returned.
func (r *OutboxRelay) processMessage(ctx context.Context, tx pgx.Tx, msg *OutboxMessage) (bool, error) {
	if err := r.handler.Handle(ctx, msg); err != nil {
		r.log.WithContext(ctx).Warnw("outbox delivery failed",
			"message_id", msg.ID, "event_type", msg.EventType,
			"retry", msg.RetryCount+1, "error", err)

		_, updateErr := tx.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, err.Error(), nextRetryAt(time.Now(), msg.RetryCount), r.maxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return false, fmt.Errorf("update failed message %s: %w", msg.ID, updateErr)
		}
		return false, nil
	}

	_, err := tx.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return false, fmt.Errorf("mark message %s published: %w", msg.ID, err)
	}
	return true, nil
}

// MoveToDLQ moves failed messages to dead letter queue.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1 AND retry_count >= $2
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() as failed_at, last_error as failure_reason FROM moved
	`, OutboxStatusFailed, r.maxRetries)

	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}
