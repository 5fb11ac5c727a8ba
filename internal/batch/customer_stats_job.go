package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
)

// CustomerStatsJob refreshes the active/inactive customer gauges from the store.
type CustomerStatsJob struct {
	repo   customer.CustomerRepository
	logger *slog.Logger
}

func NewCustomerStatsJob(repo customer.CustomerRepository, logger *slog.Logger) *CustomerStatsJob {
	if repo == nil || logger == nil {
		panic("CustomerStatsJob dependencies cannot be nil")
	}
	return &CustomerStatsJob{
		repo:   repo,
		logger: logger.With("job", "CustomerStats"),
	}
}

func (j *CustomerStatsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.DebugContext(ctx, "Counting customers by activity.")

	active, inactive, err := j.repo.CountByActivity(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to count customers, gauges left unchanged.", slog.Any("error", err))
		return fmt.Errorf("cannot refresh customer stats: %w", err)
	}

	monitoring.SetCustomerCounts(active, inactive)
	j.logger.InfoContext(ctx, "Customer stats refreshed.",
		slog.Int64("active", active),
		slog.Int64("inactive", inactive),
		slog.Duration("duration", time.Since(startTime)))
	return nil
}
