package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultStatsSchedule = "@every 5m"
	DefaultStatsTimeout  = 30 * time.Second
)

type Job interface {
	Run(ctx context.Context) error
}

// Schedule registers job on c. Every run gets its own context bounded by timeout.
func Schedule(c *cron.Cron, spec string, timeout time.Duration, name string, job Job, logger *slog.Logger) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultStatsSchedule
		logger.Warn("Batch schedule not configured, using default", "job_name", name, "schedule", spec)
	}
	if timeout <= 0 {
		timeout = DefaultStatsTimeout
	}

	jobLogger := logger.With("job_name", name)
	id, err := c.AddJob(spec, cron.FuncJob(func() {
		jobLogger.Debug("Cron triggered job run.")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if runErr := job.Run(ctx); runErr != nil {
			jobLogger.Error("Job finished with error", slog.Any("error", runErr))
		}
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to schedule job %s with spec %q: %w", name, spec, err)
	}

	logger.Info("Scheduled batch job", "job_name", name, "schedule", spec, "timeout", timeout, "entry_id", id)
	return id, nil
}
