package postgres

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgxmockExpectationsNotMetMsg = "there were unfulfilled expectations"

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var (
	logger      = slog.New(slog.NewTextHandler(io.Discard, nil))
	createdAt   = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	updatedAt   = time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)
	customerCol = []string{"id", "first_name", "last_name", "active", "created_at", "updated_at"}
	addressCol  = []string{"id", "customer_id", "name", "street", "city", "state", "postalcode"}
)

func newTestCustomer() *customer.Customer {
	return &customer.Customer{
		FirstName: "Jane",
		LastName:  "Doe",
		Active:    true,
		Addresses: []customer.Address{
			{Name: "home", Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701"},
		},
	}
}

func setupCustomerRepo(t *testing.T) (context.Context, *CustomerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewCustomerRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func TestNewCustomerRepositoryPanicsOnNilPool(t *testing.T) {
	assert.Panics(t, func() { NewCustomerRepository(nil, logger) })
}

func TestCreateCustomerWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()
	addr := cust.Addresses[0]

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, cust.Active).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), createdAt, updatedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(insertAddressQuery)).
		WithArgs(int64(7), addr.Name, addr.Street, addr.City, addr.State, addr.PostalCode).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(70)))
	mockPool.ExpectCommit()

	err := repo.Create(ctx, cust)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), cust.CustomerID)
	assert.Equal(t, createdAt, cust.CreatedAt)
	assert.Equal(t, updatedAt, cust.UpdatedAt)
	assert.Equal(t, int64(70), cust.Addresses[0].AddressID)
	assert.Equal(t, int64(7), cust.Addresses[0].CustomerID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateCustomerRollsBackWhenAddressInsertFails(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()
	addr := cust.Addresses[0]

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, cust.Active).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), createdAt, updatedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(insertAddressQuery)).
		WithArgs(int64(7), addr.Name, addr.Street, addr.City, addr.State, addr.PostalCode).
		WillReturnError(errors.New("disk full"))
	mockPool.ExpectRollback()

	err := repo.Create(ctx, cust)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateCustomerWhenBeginFails(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err := repo.Create(ctx, newTestCustomer())
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateCustomerTranslatesUniqueViolation(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, cust.Active).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mockPool.ExpectRollback()

	err := repo.Create(ctx, cust)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateCustomerTranslatesValueTooLong(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, cust.Active).
		WillReturnError(&pgconn.PgError{Code: "22001", Message: "value too long for type character varying(64)"})
	mockPool.ExpectRollback()

	err := repo.Create(ctx, cust)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.NotErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateNilCustomer(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	err := repo.Create(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateCustomerReplacesAddresses(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()
	cust.CustomerID = 3
	cust.Active = false
	addr := cust.Addresses[0]

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(updateCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, false, int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, updatedAt))
	mockPool.ExpectExec(regexp.QuoteMeta(deleteAddressesQuery)).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mockPool.ExpectQuery(regexp.QuoteMeta(insertAddressQuery)).
		WithArgs(int64(3), addr.Name, addr.Street, addr.City, addr.State, addr.PostalCode).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mockPool.ExpectCommit()

	err := repo.Update(ctx, cust)
	assert.NoError(t, err)
	assert.Equal(t, int64(31), cust.Addresses[0].AddressID)
	assert.Equal(t, updatedAt, cust.UpdatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateCustomerNotFound(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	cust := newTestCustomer()
	cust.CustomerID = 404

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(updateCustomerQuery)).
		WithArgs(cust.FirstName, cust.LastName, cust.Active, int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	err := repo.Update(ctx, cust)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateCustomerWithoutID(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	err := repo.Update(ctx, newTestCustomer())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestFindCustomerByIDReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(selectCustomerByIDQuery)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(customerCol).AddRow(int64(5), "Jane", "Doe", true, createdAt, updatedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(selectAddressesQuery)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows(addressCol).
			AddRow(int64(50), int64(5), "home", "1 Main St", "Springfield", "IL", "62701").
			AddRow(int64(51), int64(5), "work", "2 Side St", "Springfield", "IL", "62702"))

	found, err := repo.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), found.CustomerID)
	assert.Equal(t, "Jane", found.FirstName)
	require.Len(t, found.Addresses, 2)
	assert.Equal(t, "work", found.Addresses[1].Name)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDWithoutAddresses(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(selectCustomerByIDQuery)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(customerCol).AddRow(int64(5), "Jane", "Doe", true, createdAt, updatedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(selectAddressesQuery)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows(addressCol))

	found, err := repo.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, found.Addresses)
	assert.Empty(t, found.Addresses)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDNotFound(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(selectCustomerByIDQuery)).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.FindByID(ctx, 9)
	assert.Nil(t, found)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDDatabaseError(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(selectCustomerByIDQuery)).
		WithArgs(int64(9)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindByID(ctx, 9)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestBuildListQuery(t *testing.T) {
	active := true
	tests := []struct {
		name      string
		filter    customer.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			filter:    customer.ListFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "active only",
			filter:    customer.ListFilter{Active: &active},
			wantWhere: " WHERE active = $1",
			wantArgs:  []any{true},
		},
		{
			name:      "by name",
			filter:    customer.ListFilter{FirstName: "Jane", LastName: "Doe"},
			wantWhere: " WHERE first_name = $1 AND last_name = $2",
			wantArgs:  []any{"Jane", "Doe"},
		},
		{
			name:      "active and name",
			filter:    customer.ListFilter{Active: &active, FirstName: "Jane", LastName: "Doe"},
			wantWhere: " WHERE active = $1 AND first_name = $2 AND last_name = $3",
			wantArgs:  []any{true, "Jane", "Doe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.filter)
			assert.Equal(t, selectCustomerColumns+tt.wantWhere+" ORDER BY id ASC", query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestFindAllCustomersWithActiveFilter(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	filter := customer.ActiveFilter(true)
	query, _ := buildListQuery(filter)

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows(customerCol).
			AddRow(int64(1), "Jane", "Doe", true, createdAt, updatedAt).
			AddRow(int64(2), "John", "Roe", true, createdAt, updatedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(selectAddressesQuery)).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows(addressCol).
			AddRow(int64(10), int64(2), "home", "3 Elm St", "Austin", "TX", "73301"))

	customers, err := repo.FindAll(ctx, filter)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Empty(t, customers[0].Addresses)
	require.Len(t, customers[1].Addresses, 1)
	assert.Equal(t, "Austin", customers[1].Addresses[0].City)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAllCustomersEmpty(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	query, _ := buildListQuery(customer.ListFilter{})

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(pgxmock.NewRows(customerCol))

	customers, err := repo.FindAll(ctx, customer.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, customers)
	assert.Empty(t, customers)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAllCustomersQueryError(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	filter := customer.NameFilter("Jane", "Doe")
	query, _ := buildListQuery(filter)

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("Jane", "Doe").
		WillReturnError(errors.New("timeout"))

	_, err := repo.FindAll(ctx, filter)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestDeleteCustomer(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(ctx, 4)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestDeleteCustomerNotFound(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(ctx, 4)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSetActiveStatus(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(setActiveStatusQuery)).
		WithArgs(false, int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetActiveStatus(ctx, 8, false)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSetActiveStatusNotFound(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(setActiveStatusQuery)).
		WithArgs(true, int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetActiveStatus(ctx, 8, true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCountByActivity(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(countByActivityQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"active", "count"}).
			AddRow(true, int64(12)).
			AddRow(false, int64(3)))

	active, inactive, err := repo.CountByActivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), active)
	assert.Equal(t, int64(3), inactive)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestEnsureSchema(t *testing.T) {
	ctx, _, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(schemaDDL)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	err := EnsureSchema(ctx, mockPool, logger)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestEnsureSchemaFailure(t *testing.T) {
	ctx, _, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(schemaDDL)).
		WillReturnError(errors.New("permission denied"))

	err := EnsureSchema(ctx, mockPool, logger)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}
