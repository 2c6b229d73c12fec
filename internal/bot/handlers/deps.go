package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/tickerdigest/internal/config"
)

// DigestBuilder renders the report for messages in [since, now].
type DigestBuilder interface {
	Build(ctx context.Context, since, now time.Time) (string, error)
}

// MessageCounter counts stored messages at or after since.
type MessageCounter interface {
	CountMessages(ctx context.Context, since time.Time) (int, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  MessageCounter
	Digest DigestBuilder

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d HandlerDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
