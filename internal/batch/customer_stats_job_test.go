package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"customer-service/internal/batch"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, cust *customer.Customer) error {
	return m.Called(ctx, cust).Error(0)
}

func (m *MockCustomerRepository) Update(ctx context.Context, cust *customer.Customer) error {
	return m.Called(ctx, cust).Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) FindAll(ctx context.Context, filter customer.ListFilter) ([]*customer.Customer, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]*customer.Customer); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *MockCustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error {
	return m.Called(ctx, customerID, isActive).Error(0)
}

func (m *MockCustomerRepository) CountByActivity(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func TestNewCustomerStatsJobPanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { batch.NewCustomerStatsJob(nil, logger) })
	assert.Panics(t, func() { batch.NewCustomerStatsJob(new(MockCustomerRepository), nil) })
}

func TestCustomerStatsJobRunSetsGauges(t *testing.T) {
	repo := new(MockCustomerRepository)
	repo.On("CountByActivity", mock.Anything).Return(int64(12), int64(4), nil).Once()

	job := batch.NewCustomerStatsJob(repo, logger)
	err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, float64(12), testutil.ToFloat64(monitoring.Business.Customers.WithLabelValues("active")))
	assert.Equal(t, float64(4), testutil.ToFloat64(monitoring.Business.Customers.WithLabelValues("inactive")))
	repo.AssertExpectations(t)
}

func TestCustomerStatsJobRunKeepsGaugesOnError(t *testing.T) {
	monitoring.SetCustomerCounts(2, 1)

	repo := new(MockCustomerRepository)
	dbErr := errors.New("connection reset")
	repo.On("CountByActivity", mock.Anything).Return(int64(0), int64(0), dbErr).Once()

	job := batch.NewCustomerStatsJob(repo, logger)
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, float64(2), testutil.ToFloat64(monitoring.Business.Customers.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(monitoring.Business.Customers.WithLabelValues("inactive")))
	repo.AssertExpectations(t)
}

type countingJob struct {
	runs     atomic.Int32
	deadline atomic.Bool
}

func (j *countingJob) Run(ctx context.Context) error {
	_, ok := ctx.Deadline()
	j.deadline.Store(ok)
	j.runs.Add(1)
	return nil
}

func TestScheduleRegistersEntry(t *testing.T) {
	c := cron.New()
	job := &countingJob{}

	id, err := batch.Schedule(c, "@every 1h", time.Minute, "Counting", job, logger)

	require.NoError(t, err)
	entry := c.Entry(id)
	require.True(t, entry.Valid())

	entry.WrappedJob.Run()
	assert.Equal(t, int32(1), job.runs.Load())
	assert.True(t, job.deadline.Load())
}

func TestScheduleUsesDefaultSchedule(t *testing.T) {
	c := cron.New()

	id, err := batch.Schedule(c, "", 0, "Counting", &countingJob{}, logger)

	require.NoError(t, err)
	assert.True(t, c.Entry(id).Valid())
}

func TestScheduleRejectsInvalidSchedule(t *testing.T) {
	c := cron.New()

	_, err := batch.Schedule(c, "not a schedule", time.Second, "Counting", &countingJob{}, logger)

	assert.Error(t, err)
	assert.Empty(t, c.Entries())
}
