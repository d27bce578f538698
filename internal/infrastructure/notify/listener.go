// Package notify delivers PostgreSQL LISTEN/NOTIFY messages to in-process handlers.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"activatable/pkg/logger"
)

// OutboxChannel is notified by the outbox publisher with the record type as payload.
const OutboxChannel = "activatable_outbox"

// Handler is called for every notification on a subscribed channel.
type Handler func(channel, payload string)

// Listener holds one dedicated connection in LISTEN mode and fans notifications out
// to handlers. Handlers run on the listener goroutine and must not block.
type Listener struct {
	pool     *pgxpool.Pool
	channels []string

	handlersMu sync.RWMutex
	handlers   []Handler

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewListener creates a listener for channels.
func NewListener(pool *pgxpool.Pool, channels ...string) *Listener {
	return &Listener{pool: pool, channels: channels}
}

// Subscribe registers h for every notification.
func (l *Listener) Subscribe(h Handler) {
	l.handlersMu.Lock()
	l.handlers = append(l.handlers, h)
	l.handlersMu.Unlock()
}

// Start begins listening in the background.
func (l *Listener) Start(ctx context.Context) error {
	if len(l.channels) == 0 {
		return fmt.Errorf("notify listener needs at least one channel")
	}

	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return nil
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	return nil
}

// Stop ends listening and waits for the loop to exit.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

func (l *Listener) listenSQL() string {
	stmts := make([]string, 0, len(l.channels))
	for _, ch := range l.channels {
		stmts = append(stmts, "LISTEN "+pgx.Identifier{ch}.Sanitize())
	}
	return strings.Join(stmts, "; ")
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		// Acquire dedicated connection for LISTEN
		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(l.ctx, l.listenSQL()); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "channels", l.channels, "error", err)
			conn.Release()
			l.sleep(time.Second)
			continue
		}
		logger.Info(l.ctx, "listening for notifications", "channels", l.channels)

		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *Listener) sleep(d time.Duration) {
	select {
	case <-l.ctx.Done():
	case <-time.After(d):
	}
}

// waitForNotifications blocks until the connection fails or the listener stops.
func (l *Listener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		notification, err := conn.Conn().WaitForNotification(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				logger.Warn(l.ctx, "notification wait failed, reconnecting", "error", err)
			}
			return
		}

		logger.Debug(l.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)
		l.dispatch(notification.Channel, notification.Payload)
	}
}

// dispatch calls every handler, recovering from panics so one handler cannot stop the loop.
func (l *Listener) dispatch(channel, payload string) {
	l.handlersMu.RLock()
	defer l.handlersMu.RUnlock()

	for _, h := range l.handlers {
		func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(context.Background(), "notification handler panic recovered",
						"channel", channel, "panic", r)
				}
			}()
			h(channel, payload)
		}(h)
	}
}

// Wakeup returns a handler that performs a non-blocking send on ch. Use it to
// shorten a polling loop's wait when new work arrives.
func Wakeup(ch chan<- struct{}) Handler {
	return func(string, string) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
