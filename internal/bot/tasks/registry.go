package tasks

import (
	"context"
	"log/slog"
)

// Task names, used as scheduler job names and metric labels.
const (
	TaskDigest         = "digest"
	TaskSQLMaintenance = "sql_maintenance"
)

// ScheduledTaskFunc is the signature of every scheduled task. Implementations
// respect ctx cancellation and return an error for the scheduler to log.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the task functions keyed by task name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	tasks := map[string]ScheduledTaskFunc{
		TaskDigest:         newDigestTask(deps),
		TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
