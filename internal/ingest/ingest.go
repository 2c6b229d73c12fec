// Package ingest forwards inbound chat events to the message store.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/tickerdigest/internal/chat"
	"github.com/edgard/tickerdigest/internal/database"
	"github.com/edgard/tickerdigest/internal/metrics"
)

// DefaultWriteTimeout bounds a single store write.
const DefaultWriteTimeout = 5 * time.Second

// ErrStopped is returned by Handle when the ingestor is not subscribed.
var ErrStopped = errors.New("ingestor stopped")

// State is the subscription state of an Ingestor.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// MessageSaver persists messages.
type MessageSaver interface {
	SaveMessage(ctx context.Context, message *database.Message) (database.SaveResult, error)
}

// Ingestor maps chat events to stored messages.
type Ingestor struct {
	store        MessageSaver
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	mu       sync.Mutex
	state    State
	inflight sync.WaitGroup
}

// New creates an Ingestor. A zero writeTimeout uses DefaultWriteTimeout.
func New(store MessageSaver, logger *slog.Logger, m *metrics.Metrics, writeTimeout time.Duration) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Ingestor{
		store:        store,
		logger:       logger.With("component", "ingest"),
		metrics:      m,
		writeTimeout: writeTimeout,
	}
}

// State reports whether the ingestor is currently subscribed.
func (i *Ingestor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Run subscribes to sub and blocks until the subscription ends. Writes still
// in flight when it ends are awaited before Run returns.
func (i *Ingestor) Run(ctx context.Context, sub chat.Subscriber) error {
	i.mu.Lock()
	if i.state == Running {
		i.mu.Unlock()
		return errors.New("ingestor already running")
	}
	i.state = Running
	i.mu.Unlock()

	i.logger.InfoContext(ctx, "Ingestion running")
	err := sub.Subscribe(ctx, func(ctx context.Context, event chat.Event) {
		_ = i.Handle(ctx, event)
	})

	i.mu.Lock()
	i.state = Stopped
	i.mu.Unlock()

	i.inflight.Wait()
	i.logger.InfoContext(ctx, "Ingestion stopped", "error", err)
	return err
}

// Handle stores one event. Storage failures are logged and returned; they
// never stop the subscription.
func (i *Ingestor) Handle(ctx context.Context, event chat.Event) error {
	i.mu.Lock()
	if i.state != Running {
		i.mu.Unlock()
		i.logger.WarnContext(ctx, "Event received while stopped, dropping",
			"chat_id", event.ChatID, "message_id", event.MessageID)
		return ErrStopped
	}
	i.inflight.Add(1)
	i.mu.Unlock()
	defer i.inflight.Done()

	// The write finishes even if the subscription is being torn down.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.writeTimeout)
	defer cancel()

	result, err := i.store.SaveMessage(writeCtx, ToMessage(event))
	if err != nil {
		i.metrics.ObserveIngest(metrics.ResultError)
		i.logger.ErrorContext(ctx, "Failed to store message",
			"chat_id", event.ChatID, "message_id", event.MessageID, "error", err)
		return fmt.Errorf("store message %d in chat %d: %w", event.MessageID, event.ChatID, err)
	}

	i.metrics.ObserveIngest(result.String())
	i.logger.DebugContext(ctx, "Message processed",
		"chat_id", event.ChatID, "message_id", event.MessageID, "result", result)
	return nil
}

// ToMessage maps an event to a store row field by field.
func ToMessage(event chat.Event) *database.Message {
	return &database.Message{
		ChatID:    event.ChatID,
		ChatTitle: sql.NullString{String: event.ChatTitle, Valid: event.ChatTitle != ""},
		MessageID: event.MessageID,
		SenderID:  sql.NullInt64{Int64: event.SenderID, Valid: event.SenderID != 0},
		Timestamp: event.Timestamp,
		Text:      event.Text,
	}
}
