// Package bot wires the long-running pieces together: the ingestion loop,
// the task scheduler and the optional metrics listener, run according to
// the selected mode.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/tickerdigest/internal/bot/tasks"
	"github.com/edgard/tickerdigest/internal/chat"
	"github.com/edgard/tickerdigest/internal/ingest"
	"github.com/edgard/tickerdigest/internal/metrics"
)

// Mode selects which components run.
type Mode string

const (
	// ModeIngest stores chat messages until shutdown.
	ModeIngest Mode = "ingest"
	// ModeDigest builds and sends one digest, then exits.
	ModeDigest Mode = "digest"
	// ModeSchedule stores chat messages and sends the daily digest.
	ModeSchedule Mode = "schedule"
)

// ParseMode parses a mode name. Empty selects ModeSchedule.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSchedule, nil
	case ModeIngest, ModeDigest, ModeSchedule:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want ingest, digest or schedule)", s)
	}
}

// NeedsDestination reports whether the mode delivers digests.
func (m Mode) NeedsDestination() bool {
	return m == ModeDigest || m == ModeSchedule
}

// Bot represents the application and manages its components' lifecycle.
type Bot struct {
	logger     *slog.Logger
	subscriber chat.Subscriber
	ingestor   *ingest.Ingestor
	scheduler  *Scheduler
	runDigest  tasks.ScheduledTaskFunc

	metricsListen string
	gatherer      prometheus.Gatherer
}

// NewBot creates the orchestrator. scheduler and runDigest may be nil when
// the mode that needs them is never run.
func NewBot(
	logger *slog.Logger,
	subscriber chat.Subscriber,
	ingestor *ingest.Ingestor,
	scheduler *Scheduler,
	runDigest tasks.ScheduledTaskFunc,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:     logger.With("component", "bot_orchestrator"),
		subscriber: subscriber,
		ingestor:   ingestor,
		scheduler:  scheduler,
		runDigest:  runDigest,
	}
}

// EnableMetrics serves gatherer on listen while a long-running mode runs.
func (b *Bot) EnableMetrics(listen string, gatherer prometheus.Gatherer) {
	b.metricsListen = listen
	b.gatherer = gatherer
}

// Run executes mode until it completes or ctx is cancelled. Cancellation is
// a graceful stop and returns nil.
func (b *Bot) Run(ctx context.Context, mode Mode) error {
	b.logger.InfoContext(ctx, "Starting bot orchestrator", "mode", mode)

	switch mode {
	case ModeDigest:
		if b.runDigest == nil {
			return errors.New("digest mode requires a digest task")
		}
		if err := b.runDigest(ctx); err != nil {
			return fmt.Errorf("digest run failed: %w", err)
		}
		b.logger.InfoContext(ctx, "Digest run completed")
		return nil
	case ModeIngest, ModeSchedule:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	if mode == ModeSchedule && b.scheduler == nil {
		return errors.New("schedule mode requires a scheduler")
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.ingestor.Run(gCtx, b.subscriber)
		if err != nil {
			return fmt.Errorf("ingestion stopped: %w", err)
		}
		if gCtx.Err() == nil {
			b.logger.WarnContext(ctx, "Ingestion stopped unexpectedly without context cancellation")
			return errors.New("ingestion stopped unexpectedly")
		}
		return nil
	})

	if mode == ModeSchedule {
		g.Go(func() error {
			if err := b.scheduler.Start(gCtx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.InfoContext(ctx, "Shutdown signal received, stopping scheduler")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.ErrorContext(ctx, "Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if b.metricsListen != "" {
		g.Go(func() error {
			return metrics.Serve(gCtx, b.metricsListen, b.gatherer, b.logger)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.ErrorContext(ctx, "Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.InfoContext(ctx, "Bot orchestrator stopped gracefully")
	return nil
}
