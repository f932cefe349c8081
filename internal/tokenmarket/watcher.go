package tokenmarket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WatcherConfig configures the graduation watcher.
type WatcherConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout bounds each read from the feed.
	ReadTimeout time.Duration
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
	}
}

// GraduationHandler consumes one graduation event. The watcher delivers
// at-least-once: handlers must be idempotent.
type GraduationHandler func(ctx context.Context, ev GraduationEvent) error

// Watcher subscribes to the token service graduation event feed over
// WebSocket and dispatches events to a handler. It reconnects with
// exponential backoff until the context is cancelled.
type Watcher struct {
	endpoint string
	config   WatcherConfig
	handler  GraduationHandler
	logger   *zap.Logger
}

// NewWatcher creates a graduation watcher.
func NewWatcher(endpoint string, handler GraduationHandler, logger *zap.Logger, config *WatcherConfig) *Watcher {
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}
	return &Watcher{
		endpoint: endpoint,
		config:   cfg,
		handler:  handler,
		logger:   logger,
	}
}

// Run connects and consumes the feed until ctx is cancelled. Handler
// errors are logged, not fatal: a failed graduation trigger is retried by
// the next delivery or by the polling reconciler, never dropped silently.
func (w *Watcher) Run(ctx context.Context) error {
	delay := w.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := w.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("graduation feed disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > w.config.MaxReconnectDelay {
			delay = w.config.MaxReconnectDelay
		}
	}
}

// consume holds one connection open and dispatches events until it drops.
func (w *Watcher) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w.logger.Info("connected to graduation feed", zap.String("endpoint", w.endpoint))

	// Close the connection when the context is cancelled to unblock reads.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev GraduationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			w.logger.Warn("malformed graduation event", zap.Error(err))
			continue
		}
		if ev.PoolID == "" && ev.TokenMint == "" {
			continue
		}

		if err := w.handler(ctx, ev); err != nil {
			w.logger.Error("graduation handler failed",
				zap.String("pool_id", ev.PoolID),
				zap.String("token_mint", ev.TokenMint),
				zap.Error(err))
		}
	}
}
