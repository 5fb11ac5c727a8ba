package memory

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	customerTable = "customers"
	addressTable  = "addresses"

	idIndex         = "id"
	activeIndex     = "active"
	nameIndex       = "name"
	customerIDIndex = "customer_id"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			customerTable: {
				Name: customerTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "CustomerID"},
					},
					activeIndex: {
						Name:    activeIndex,
						Indexer: &memdb.BoolFieldIndex{Field: "Active"},
					},
					nameIndex: {
						Name:         nameIndex,
						AllowMissing: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "FirstName"},
								&memdb.StringFieldIndex{Field: "LastName"},
							},
						},
					},
				},
			},
			addressTable: {
				Name: addressTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "AddressID"},
					},
					customerIDIndex: {
						Name:    customerIDIndex,
						Indexer: &memdb.IntFieldIndex{Field: "CustomerID"},
					},
				},
			},
		},
	}
}

// CustomerRepository keeps customers in a go-memdb database. Stored objects are
// never handed out; every read returns a copy.
type CustomerRepository struct {
	db           *memdb.MemDB
	logger       *slog.Logger
	lastCustomer atomic.Int64
	lastAddress  atomic.Int64
	now          func() time.Time
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(logger *slog.Logger) (*CustomerRepository, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create in-memory database: %w", apperrors.ErrDatabase, err)
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "MemoryCustomerRepository"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) (err error) {
	defer observe("customer_create", &err, time.Now())

	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	now := r.now()
	cust.CustomerID = r.lastCustomer.Add(1)
	cust.CreatedAt = now
	cust.UpdatedAt = now

	if err = txn.Insert(customerTable, row(cust)); err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}
	if err = r.insertAddresses(txn, cust); err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert addresses", slog.Any("error", err))
		return err
	}
	txn.Commit()

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) insertAddresses(txn *memdb.Txn, cust *customer.Customer) error {
	for i := range cust.Addresses {
		addr := &cust.Addresses[i]
		addr.AddressID = r.lastAddress.Add(1)
		addr.CustomerID = cust.CustomerID
		stored := *addr
		if err := txn.Insert(addressTable, &stored); err != nil {
			return fmt.Errorf("%w: failed to insert address: %w", apperrors.ErrDatabase, err)
		}
	}
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, cust *customer.Customer) (err error) {
	defer observe("customer_update", &err, time.Now())

	if cust == nil || cust.CustomerID == 0 {
		return fmt.Errorf("%w: customer must have an id to be updated", apperrors.ErrInvalidArgument)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := r.first(txn, cust.CustomerID)
	if err != nil {
		return err
	}

	cust.CreatedAt = existing.CreatedAt
	cust.UpdatedAt = r.now()
	if err = txn.Insert(customerTable, row(cust)); err != nil {
		return fmt.Errorf("%w: failed to update customer: %w", apperrors.ErrDatabase, err)
	}
	if _, err = txn.DeleteAll(addressTable, customerIDIndex, cust.CustomerID); err != nil {
		return fmt.Errorf("%w: failed to replace addresses: %w", apperrors.ErrDatabase, err)
	}
	if err = r.insertAddresses(txn, cust); err != nil {
		return err
	}
	txn.Commit()

	r.logger.InfoContext(ctx, "Customer updated successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (_ *customer.Customer, err error) {
	defer observe("customer_find_by_id", &err, time.Now())

	txn := r.db.Txn(false)
	defer txn.Abort()

	stored, err := r.first(txn, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
		}
		return nil, err
	}
	return r.withAddresses(txn, stored)
}

func (r *CustomerRepository) FindAll(ctx context.Context, filter customer.ListFilter) (_ []*customer.Customer, err error) {
	defer observe("customer_find_all", &err, time.Now())

	txn := r.db.Txn(false)
	defer txn.Abort()

	var it memdb.ResultIterator
	switch {
	case filter.Active != nil:
		it, err = txn.Get(customerTable, activeIndex, *filter.Active)
	case filter.FirstName != "" && filter.LastName != "":
		it, err = txn.Get(customerTable, nameIndex, filter.FirstName, filter.LastName)
	default:
		it, err = txn.Get(customerTable, idIndex)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to scan customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query customers: %w", apperrors.ErrDatabase, err)
	}

	customers := make([]*customer.Customer, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		stored := obj.(*customer.Customer)
		if !matches(stored, filter) {
			continue
		}
		cust, err := r.withAddresses(txn, stored)
		if err != nil {
			return nil, err
		}
		customers = append(customers, cust)
	}

	sort.Slice(customers, func(i, j int) bool {
		return customers[i].CustomerID < customers[j].CustomerID
	})

	r.logger.InfoContext(ctx, "Finished finding customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (r *CustomerRepository) Delete(ctx context.Context, customerID int64) (err error) {
	defer observe("customer_delete", &err, time.Now())

	txn := r.db.Txn(true)
	defer txn.Abort()

	stored, err := r.first(txn, customerID)
	if err != nil {
		return err
	}
	if err = txn.Delete(customerTable, stored); err != nil {
		return fmt.Errorf("%w: failed to delete customer: %w", apperrors.ErrDatabase, err)
	}
	if _, err = txn.DeleteAll(addressTable, customerIDIndex, customerID); err != nil {
		return fmt.Errorf("%w: failed to delete addresses: %w", apperrors.ErrDatabase, err)
	}
	txn.Commit()

	r.logger.InfoContext(ctx, "Customer deleted successfully", slog.Int64("customerID", customerID))
	return nil
}

func (r *CustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) (err error) {
	defer observe("customer_set_active", &err, time.Now())

	txn := r.db.Txn(true)
	defer txn.Abort()

	stored, err := r.first(txn, customerID)
	if err != nil {
		return err
	}
	updated := *stored
	updated.Active = isActive
	updated.UpdatedAt = r.now()
	if err = txn.Insert(customerTable, &updated); err != nil {
		return fmt.Errorf("%w: failed to update active status: %w", apperrors.ErrDatabase, err)
	}
	txn.Commit()

	r.logger.InfoContext(ctx, "Customer active status updated successfully", slog.Int64("customerID", customerID), slog.Bool("isActive", isActive))
	return nil
}

func (r *CustomerRepository) CountByActivity(ctx context.Context) (active int64, inactive int64, err error) {
	defer observe("customer_count_by_activity", &err, time.Now())

	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(customerTable, idIndex)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: failed to count customers: %w", apperrors.ErrDatabase, err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if obj.(*customer.Customer).Active {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

func (r *CustomerRepository) first(txn *memdb.Txn, customerID int64) (*customer.Customer, error) {
	obj, err := txn.First(customerTable, idIndex, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to look up customer: %w", apperrors.ErrDatabase, err)
	}
	if obj == nil {
		return nil, apperrors.ErrNotFound
	}
	return obj.(*customer.Customer), nil
}

func (r *CustomerRepository) withAddresses(txn *memdb.Txn, stored *customer.Customer) (*customer.Customer, error) {
	it, err := txn.Get(addressTable, customerIDIndex, stored.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query addresses: %w", apperrors.ErrDatabase, err)
	}

	cust := stored.Clone()
	cust.Addresses = []customer.Address{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cust.Addresses = append(cust.Addresses, *obj.(*customer.Address))
	}
	sort.Slice(cust.Addresses, func(i, j int) bool {
		return cust.Addresses[i].AddressID < cust.Addresses[j].AddressID
	})
	return cust, nil
}

// row is the stored form of a customer; addresses live in their own table.
func row(cust *customer.Customer) *customer.Customer {
	stored := *cust
	stored.Addresses = nil
	return &stored
}

func matches(cust *customer.Customer, filter customer.ListFilter) bool {
	if filter.Active != nil && cust.Active != *filter.Active {
		return false
	}
	if filter.ByName() && (cust.FirstName != filter.FirstName || cust.LastName != filter.LastName) {
		return false
	}
	return true
}

func observe(queryName string, errp *error, start time.Time) {
	monitoring.RecordDBQuery(queryName, *errp, time.Since(start))
}
