package postgres

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

const (
	insertCustomerQuery = `
        INSERT INTO customers (first_name, last_name, active, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	insertAddressQuery = `
        INSERT INTO addresses (customer_id, name, street, city, state, postalcode)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`

	updateCustomerQuery = `
        UPDATE customers
        SET first_name = $1,
            last_name = $2,
            active = $3,
            updated_at = NOW()
        WHERE id = $4
        RETURNING created_at, updated_at`

	deleteAddressesQuery = `DELETE FROM addresses WHERE customer_id = $1`

	selectCustomerColumns = `
        SELECT id, first_name, last_name, active, created_at, updated_at
        FROM customers`

	selectCustomerByIDQuery = selectCustomerColumns + `
        WHERE id = $1`

	selectAddressesQuery = `
        SELECT id, customer_id, name, street, city, state, postalcode
        FROM addresses
        WHERE customer_id = ANY($1)
        ORDER BY id ASC`

	deleteCustomerQuery = `DELETE FROM customers WHERE id = $1`

	setActiveStatusQuery = `UPDATE customers SET active = $1, updated_at = NOW() WHERE id = $2`

	countByActivityQuery = `SELECT active, COUNT(*) FROM customers GROUP BY active`
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *CustomerRepository) commitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to commit transaction: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *CustomerRepository) rollbackTx(ctx context.Context, tx pgx.Tx) {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
		return
	}
	r.logger.InfoContext(ctx, "Transaction rolled back")
}

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) (err error) {
	defer observe("customer_create", &err, time.Now())

	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.String("first_name", cust.FirstName), slog.String("last_name", cust.LastName))

	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, insertCustomerQuery,
		cust.FirstName,
		cust.LastName,
		cust.Active,
	).Scan(
		&cust.CustomerID,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)
	if err != nil {
		r.rollbackTx(ctx, tx)
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return translateDBError(err, "failed to insert customer")
	}

	if err = r.insertAddresses(ctx, tx, cust); err != nil {
		r.rollbackTx(ctx, tx)
		return err
	}

	if err = r.commitTx(ctx, tx); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) insertAddresses(ctx context.Context, tx pgx.Tx, cust *customer.Customer) error {
	for i := range cust.Addresses {
		addr := &cust.Addresses[i]
		addr.CustomerID = cust.CustomerID
		err := tx.QueryRow(ctx, insertAddressQuery,
			addr.CustomerID,
			addr.Name,
			addr.Street,
			addr.City,
			addr.State,
			addr.PostalCode,
		).Scan(&addr.AddressID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to insert address", slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
			return translateDBError(err, "failed to insert address")
		}
	}
	return nil
}

// Update overwrites the customer row and replaces its addresses in one transaction.
func (r *CustomerRepository) Update(ctx context.Context, cust *customer.Customer) (err error) {
	defer observe("customer_update", &err, time.Now())

	if cust == nil || cust.CustomerID == 0 {
		return fmt.Errorf("%w: customer must have an id to be updated", apperrors.ErrInvalidArgument)
	}
	r.logger.InfoContext(ctx, "Attempting to update customer", slog.Int64("customerID", cust.CustomerID))

	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, updateCustomerQuery,
		cust.FirstName,
		cust.LastName,
		cust.Active,
		cust.CustomerID,
	).Scan(&cust.CreatedAt, &cust.UpdatedAt)
	if err != nil {
		r.rollbackTx(ctx, tx)
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Update matched zero rows, customer not found")
			return apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to update customer", slog.Any("error", err))
		return translateDBError(err, "failed to update customer")
	}

	if _, err = tx.Exec(ctx, deleteAddressesQuery, cust.CustomerID); err != nil {
		r.rollbackTx(ctx, tx)
		r.logger.ErrorContext(ctx, "Failed to clear customer addresses", slog.Any("error", err))
		return translateDBError(err, "failed to replace addresses")
	}

	if err = r.insertAddresses(ctx, tx, cust); err != nil {
		r.rollbackTx(ctx, tx)
		return err
	}

	if err = r.commitTx(ctx, tx); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Customer updated successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (_ *customer.Customer, err error) {
	defer observe("customer_find_by_id", &err, time.Now())

	r.logger.InfoContext(ctx, "Attempting to find customer by ID", slog.Int64("customerID", customerID))

	var cust customer.Customer
	err = r.db.QueryRow(ctx, selectCustomerByIDQuery, customerID).Scan(
		&cust.CustomerID,
		&cust.FirstName,
		&cust.LastName,
		&cust.Active,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found")
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by ID: %w", apperrors.ErrDatabase, err)
	}

	customers := []*customer.Customer{&cust}
	if err = r.attachAddresses(ctx, customers); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Customer found successfully")
	return &cust, nil
}

// buildListQuery returns the SELECT for filter together with its positional arguments.
func buildListQuery(filter customer.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, "active = $"+strconv.Itoa(len(args)))
	}
	if filter.ByName() {
		args = append(args, filter.FirstName)
		conditions = append(conditions, "first_name = $"+strconv.Itoa(len(args)))
		args = append(args, filter.LastName)
		conditions = append(conditions, "last_name = $"+strconv.Itoa(len(args)))
	}

	query := selectCustomerColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id ASC"
	return query, args
}

func (r *CustomerRepository) FindAll(ctx context.Context, filter customer.ListFilter) (_ []*customer.Customer, err error) {
	defer observe("customer_find_all", &err, time.Now())

	r.logger.InfoContext(ctx, "Attempting to find customers")

	query, args := buildListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query customers: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		var cust customer.Customer
		err = rows.Scan(
			&cust.CustomerID,
			&cust.FirstName,
			&cust.LastName,
			&cust.Active,
			&cust.CreatedAt,
			&cust.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, err)
		}
		customers = append(customers, &cust)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating customer rows: %w", apperrors.ErrDatabase, err)
	}
	rows.Close()

	if err = r.attachAddresses(ctx, customers); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Finished finding customers", slog.Int("count", len(customers)))
	return customers, nil
}

// attachAddresses loads the addresses of every customer with a single query.
func (r *CustomerRepository) attachAddresses(ctx context.Context, customers []*customer.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	ids := make([]int64, len(customers))
	byID := make(map[int64]*customer.Customer, len(customers))
	for i, cust := range customers {
		ids[i] = cust.CustomerID
		cust.Addresses = []customer.Address{}
		byID[cust.CustomerID] = cust
	}

	rows, err := r.db.Query(ctx, selectAddressesQuery, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query addresses", slog.Any("error", err))
		return fmt.Errorf("%w: failed to query addresses: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr customer.Address
		if err := rows.Scan(
			&addr.AddressID,
			&addr.CustomerID,
			&addr.Name,
			&addr.Street,
			&addr.City,
			&addr.State,
			&addr.PostalCode,
		); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan address row", slog.Any("error", err))
			return fmt.Errorf("%w: failed to scan address row: %w", apperrors.ErrDatabase, err)
		}
		if owner, ok := byID[addr.CustomerID]; ok {
			owner.Addresses = append(owner.Addresses, addr)
		}
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating address rows", slog.Any("error", err))
		return fmt.Errorf("%w: error iterating address rows: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

// Delete removes the customer; the addresses foreign key cascades.
func (r *CustomerRepository) Delete(ctx context.Context, customerID int64) (err error) {
	defer observe("customer_delete", &err, time.Now())

	r.logger.InfoContext(ctx, "Attempting to delete customer", slog.Int64("customerID", customerID))

	cmdTag, err := r.db.Exec(ctx, deleteCustomerQuery, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to execute delete customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to delete customer: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Delete affected zero rows, customer likely not found")
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Customer deleted successfully")
	return nil
}

func (r *CustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) (err error) {
	defer observe("customer_set_active", &err, time.Now())

	r.logger.InfoContext(ctx, "Attempting to set active status", slog.Int64("customerID", customerID), slog.Bool("isActive", isActive))

	cmdTag, err := r.db.Exec(ctx, setActiveStatusQuery, isActive, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to execute update active status", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update active status: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update active status affected zero rows, customer likely not found")
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Customer active status updated successfully")
	return nil
}

func (r *CustomerRepository) CountByActivity(ctx context.Context) (active int64, inactive int64, err error) {
	defer observe("customer_count_by_activity", &err, time.Now())

	rows, err := r.db.Query(ctx, countByActivityQuery)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to count customers", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%w: failed to count customers: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var isActive bool
		var count int64
		if err = rows.Scan(&isActive, &count); err != nil {
			return 0, 0, fmt.Errorf("%w: failed to scan count row: %w", apperrors.ErrDatabase, err)
		}
		if isActive {
			active = count
		} else {
			inactive = count
		}
	}
	if err = rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("%w: error iterating count rows: %w", apperrors.ErrDatabase, err)
	}
	return active, inactive, nil
}

func observe(queryName string, errp *error, start time.Time) {
	monitoring.RecordDBQuery(queryName, *errp, time.Since(start))
}

func translateDBError(err error, message string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s: %w", apperrors.ErrAlreadyExists, message, err)
		case "23503":
			return fmt.Errorf("%w: %s: %w", apperrors.ErrConflict, message, err)
		case "22001":
			return fmt.Errorf("%w: %s: %w", apperrors.ErrInvalidArgument, message, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrDatabase, message, err)
}
