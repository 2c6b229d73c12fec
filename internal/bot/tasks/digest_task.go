package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/tickerdigest/internal/digest"
	"github.com/edgard/tickerdigest/internal/metrics"
)

// newDigestTask creates the task that builds the last day's digest and posts
// it to the configured destination.
func newDigestTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		log := deps.Logger.With("task", TaskDigest, "run_id", uuid.NewString())
		startTime := time.Now()

		now := deps.now()
		since := now.Add(-digest.Window)
		log.InfoContext(ctx, "Building digest", "since", since, "until", now, "destination", deps.Destination)

		report, err := deps.Digest.Build(ctx, since, now)
		if err != nil {
			deps.Metrics.ObserveDigest(metrics.ResultError, time.Since(startTime))
			if errors.Is(err, context.DeadlineExceeded) {
				log.WarnContext(ctx, "Timed out building digest")
			} else {
				log.ErrorContext(ctx, "Failed to build digest", "error", err)
			}
			return fmt.Errorf("build digest: %w", err)
		}

		if err := deps.Sender.Send(ctx, deps.Destination, report); err != nil {
			deps.Metrics.ObserveDigest(metrics.ResultError, time.Since(startTime))
			log.ErrorContext(ctx, "Failed to send digest", "error", err)
			return fmt.Errorf("send digest to %s: %w", deps.Destination, err)
		}

		duration := time.Since(startTime)
		deps.Metrics.ObserveDigest(metrics.ResultSuccess, duration)
		log.InfoContext(ctx, "Digest sent", "duration", duration, "length", len(report))
		return nil
	}
}
