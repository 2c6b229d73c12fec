// Package tasks implements the scheduled tasks: the daily ticker digest and
// SQLite maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/tickerdigest/internal/chat"
	"github.com/edgard/tickerdigest/internal/metrics"
)

// DigestBuilder renders the report for messages in [since, now].
type DigestBuilder interface {
	Build(ctx context.Context, since, now time.Time) (string, error)
}

// Maintainer runs storage housekeeping.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger      *slog.Logger
	Store       Maintainer
	Digest      DigestBuilder
	Sender      chat.Sender
	Destination string
	Metrics     *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
