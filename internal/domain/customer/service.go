package customer

import (
	"context"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	resourceName     = "Customer"
	customerNotFound = "Customer not found by repository"
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, cust *Customer) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	ListCustomers(ctx context.Context, filter ListFilter) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, customerID int64, cust *Customer) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID int64) error
	ActivateCustomer(ctx context.Context, customerID int64) (*Customer, error)
	DeactivateCustomer(ctx context.Context, customerID int64) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	if eventPublisher == nil {
		logger.Warn("Warning: No event publisher provided to NewCustomerService, events will be dropped")
		eventPublisher = event.NopPublisher{}
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	addresses := make([]event.AddressPayload, len(cust.Addresses))
	for i, addr := range cust.Addresses {
		addresses[i] = event.AddressPayload{
			AddressID:  addr.AddressID,
			Name:       addr.Name,
			Street:     addr.Street,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
		}
	}
	return event.CustomerEventPayload{
		CustomerID: cust.CustomerID,
		FirstName:  cust.FirstName,
		LastName:   cust.LastName,
		Active:     cust.Active,
		Addresses:  addresses,
		CreatedAt:  cust.CreatedAt,
		UpdatedAt:  cust.UpdatedAt,
	}
}

func (s *customerService) publishUpdated(ctx context.Context, cust *Customer) {
	updatedEvent := event.CustomerUpdatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(cust),
	}
	if err := s.pub.PublishCustomerUpdated(ctx, updatedEvent); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish customer update event", slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
		return
	}
	s.logger.DebugContext(ctx, "Published customer update event", slog.Int64("customerID", cust.CustomerID))
}

func (s *customerService) CreateCustomer(ctx context.Context, cust *Customer) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer")

	if cust == nil {
		return nil, fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	// The store always assigns the id; anything supplied by the caller is discarded.
	cust.CustomerID = 0
	for i := range cust.Addresses {
		cust.Addresses[i].AddressID = 0
		cust.Addresses[i].CustomerID = 0
	}

	if err := s.repo.Create(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to create customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}
	logger := s.logger.With(slog.Int64("customerID", cust.CustomerID))
	monitoring.RecordCustomerCreated()

	createdEvent := event.CustomerCreatedEvent{
		Timestamp: time.Now(),
		Payload:   NewCustomerEventPayload(cust),
	}
	if pubErr := s.pub.PublishCustomerCreated(ctx, createdEvent); pubErr != nil {
		logger.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}

	logger.InfoContext(ctx, "Successfully created new customer", slog.Int("addresses", len(cust.Addresses)))
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to get customer by ID")

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, apperrors.NewNotFoundError(resourceName, customerID)
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	logger.InfoContext(ctx, "Successfully retrieved customer")
	return cust, nil
}

func (s *customerService) ListCustomers(ctx context.Context, filter ListFilter) ([]*Customer, error) {
	attrs := []any{slog.Bool("byName", filter.ByName())}
	if filter.Active != nil {
		attrs = append(attrs, slog.Bool("active", *filter.Active))
	}
	s.logger.InfoContext(ctx, "Attempting to list customers", attrs...)

	customers, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully retrieved customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, customerID int64, cust *Customer) (*Customer, error) {
	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to update customer")

	if cust == nil {
		return nil, fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	// The path id wins over whatever the body carried.
	cust.CustomerID = customerID
	for i := range cust.Addresses {
		cust.Addresses[i].AddressID = 0
		cust.Addresses[i].CustomerID = customerID
	}

	if err := s.repo.Update(ctx, cust); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Customer disappeared before update completed")
			return nil, apperrors.NewNotFoundError(resourceName, customerID)
		}
		logger.ErrorContext(ctx, "Repository failed to update customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to update customer %d: %w", customerID, err)
	}

	s.publishUpdated(ctx, cust)
	logger.InfoContext(ctx, "Successfully updated customer")
	return cust, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to delete customer")

	err := s.repo.Delete(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.InfoContext(ctx, "Customer already absent, nothing to delete")
			return nil
		}
		logger.ErrorContext(ctx, "Repository error deleting customer", slog.Any("error", err))
		return fmt.Errorf("failed to delete customer %d: %w", customerID, err)
	}
	monitoring.RecordCustomerDeleted()

	deletedEvent := event.CustomerDeletedEvent{Timestamp: time.Now(), CustomerID: customerID}
	if pubErr := s.pub.PublishCustomerDeleted(ctx, deletedEvent); pubErr != nil {
		logger.ErrorContext(ctx, "Customer deleted, but FAILED to publish deletion event", slog.Any("error", pubErr))
	}

	logger.InfoContext(ctx, "Successfully deleted customer")
	return nil
}

func (s *customerService) ActivateCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	return s.setActive(ctx, customerID, true)
}

func (s *customerService) DeactivateCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	return s.setActive(ctx, customerID, false)
}

func (s *customerService) setActive(ctx context.Context, customerID int64, active bool) (*Customer, error) {
	logger := s.logger.With(slog.Int64("customerID", customerID), slog.Bool("isActive", active))
	logger.InfoContext(ctx, "Attempting to set customer active status")

	err := s.repo.SetActiveStatus(ctx, customerID, active)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, apperrors.NewNotFoundError(resourceName, customerID)
		}
		logger.ErrorContext(ctx, "Repository error setting active status", slog.Any("error", err))
		return nil, fmt.Errorf("failed to set active status for customer %d: %w", customerID, err)
	}

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Customer disappeared after active status change")
			return nil, apperrors.NewNotFoundError(resourceName, customerID)
		}
		logger.ErrorContext(ctx, "Updated status, but FAILED to re-fetch customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to reload customer %d: %w", customerID, err)
	}

	s.publishUpdated(ctx, cust)
	logger.InfoContext(ctx, "Successfully changed customer active status")
	return cust, nil
}
