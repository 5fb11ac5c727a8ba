package customer

import (
	"context"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error

	Update(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindAll(ctx context.Context, filter ListFilter) ([]*Customer, error)

	Delete(ctx context.Context, customerID int64) error

	SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error

	CountByActivity(ctx context.Context) (active int64, inactive int64, err error)
}
