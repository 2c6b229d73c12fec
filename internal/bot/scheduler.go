package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/tickerdigest/internal/bot/tasks"
	"github.com/edgard/tickerdigest/internal/config"
	"github.com/edgard/tickerdigest/internal/metrics"
)

// DefaultTaskTimeout bounds one task run when the configuration sets none.
const DefaultTaskTimeout = 2 * time.Minute

// JobSpec pairs a registered task with when it runs.
type JobSpec struct {
	Name       string
	Schedule   string // human readable, for logs
	Definition gocron.JobDefinition
}

// JobSpecs derives the job list from configuration. The digest always runs
// daily at digest.hour:digest.minute in the scheduler's location.
func JobSpecs(cfg *config.Config) []JobSpec {
	specs := []JobSpec{{
		Name:     tasks.TaskDigest,
		Schedule: fmt.Sprintf("daily at %02d:%02d", cfg.Digest.Hour, cfg.Digest.Minute),
		Definition: gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(cfg.Digest.Hour), uint(cfg.Digest.Minute), 0),
		)),
	}}
	if cfg.Scheduler.MaintenanceEnabled {
		specs = append(specs, JobSpec{
			Name:       tasks.TaskSQLMaintenance,
			Schedule:   cfg.Scheduler.MaintenanceSchedule,
			Definition: gocron.CronJob(cfg.Scheduler.MaintenanceSchedule, true), // seconds field first
		})
	}
	return specs
}

// Scheduler runs registered tasks on their schedules using gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	specs     []JobSpec
	taskMap   map[string]tasks.ScheduledTaskFunc
	timeout   time.Duration
	metrics   *metrics.Metrics

	mu      sync.Mutex
	running bool
	jobs    map[string]gocron.Job
}

// NewScheduler creates a scheduler for specs. Specs without a matching task
// in taskMap are skipped at Start.
func NewScheduler(
	logger *slog.Logger,
	specs []JobSpec,
	taskMap map[string]tasks.ScheduledTaskFunc,
	timeout time.Duration,
	m *metrics.Metrics,
	opts ...gocron.SchedulerOption,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		specs:     specs,
		taskMap:   taskMap,
		timeout:   timeout,
		metrics:   m,
	}, nil
}

// Start registers the jobs and starts ticking. Task runs derive their
// context from ctx, bounded by the task timeout.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	s.jobs = make(map[string]gocron.Job, len(s.specs))
	for _, spec := range s.specs {
		taskFunc, exists := s.taskMap[spec.Name]
		if !exists {
			s.logger.WarnContext(ctx, "Scheduled task has no registered function, skipping", "task_name", spec.Name)
			continue
		}

		job, err := s.scheduler.NewJob(
			spec.Definition,
			gocron.NewTask(s.wrap(ctx, spec.Name, taskFunc)),
			gocron.WithName(spec.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %s (%s): %w", spec.Name, spec.Schedule, err)
		}
		s.jobs[spec.Name] = job
		s.logger.InfoContext(ctx, "Scheduled task", "task_name", spec.Name, "schedule", spec.Schedule)
	}

	s.scheduler.Start()
	s.running = true

	for name, job := range s.jobs {
		if next, err := job.NextRun(); err == nil {
			s.logger.InfoContext(ctx, "Next run", "task_name", name, "at", next)
		}
	}
	s.logger.InfoContext(ctx, "Scheduler started", "tasks_scheduled", len(s.jobs))
	return nil
}

// wrap adds logging, metrics and the per-run timeout around a task. A failed
// run is logged and counted; the job stays scheduled.
func (s *Scheduler) wrap(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) func() {
	return func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		s.logger.InfoContext(runCtx, "Running scheduled task", "task_name", name)
		startTime := time.Now()

		if err := taskFunc(runCtx); err != nil {
			s.metrics.ObserveTask(name, metrics.ResultError)
			s.logger.ErrorContext(runCtx, "Scheduled task failed", "task_name", name, "error", err)
		} else {
			s.metrics.ObserveTask(name, metrics.ResultSuccess)
		}
		s.logger.InfoContext(runCtx, "Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
	}
}

// JobNames lists the scheduled jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, spec := range s.specs {
		if _, ok := s.jobs[spec.Name]; ok {
			names = append(names, spec.Name)
		}
	}
	return names
}

// RunNow triggers the named job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no scheduled job named %q", name)
	}
	return job.RunNow()
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Debug("Scheduler is not running, nothing to stop")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully")
	}

	s.running = false
	return err
}
