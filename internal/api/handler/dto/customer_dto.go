package dto

import (
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// AddressRequest uses pointers so a missing key can be told apart from an empty value.
type AddressRequest struct {
	ID         *int64  `json:"id,omitempty"`
	CustomerID *int64  `json:"customer_id,omitempty"`
	Name       *string `json:"name" validate:"required,max=64"`
	Street     *string `json:"street" validate:"required,max=64"`
	City       *string `json:"city" validate:"required,max=64"`
	State      *string `json:"state" validate:"required,max=64"`
	PostalCode *string `json:"postalcode" validate:"required,max=16"`
}

// CustomerRequest is the body of POST /customers and PUT /customers/{id}.
// Incoming ids are ignored; the store owns them.
type CustomerRequest struct {
	ID        *int64           `json:"id,omitempty"`
	FirstName *string          `json:"first_name" validate:"required,max=64"`
	LastName  *string          `json:"last_name" validate:"required,max=64"`
	Active    *bool            `json:"active" validate:"required"`
	Addresses []AddressRequest `json:"addresses" validate:"required,dive"`
}

// Validate reports the first missing or oversized field as an apperrors.ValidationError.
// Length limits match the column widths of the postgres schema.
func (r *CustomerRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fieldPath(fe.Namespace())
		if fe.Tag() == "max" {
			return apperrors.NewValidationError(field, "must be at most "+fe.Param()+" characters")
		}
		return apperrors.NewValidationError(field, "missing required field")
	}
	return apperrors.NewValidationError("", err.Error())
}

// fieldPath drops the struct name validator prefixes to every namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// ToDomain must only be called after Validate succeeded.
func (r *CustomerRequest) ToDomain() *customer.Customer {
	addresses := make([]customer.Address, len(r.Addresses))
	for i, a := range r.Addresses {
		addresses[i] = customer.Address{
			Name:       *a.Name,
			Street:     *a.Street,
			City:       *a.City,
			State:      *a.State,
			PostalCode: *a.PostalCode,
		}
	}

	return &customer.Customer{
		FirstName: *r.FirstName,
		LastName:  *r.LastName,
		Active:    *r.Active,
		Addresses: addresses,
	}
}

type AddressResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalcode"`
}

type CustomerResponse struct {
	ID        int64             `json:"id"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Active    bool              `json:"active"`
	Addresses []AddressResponse `json:"addresses"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewAddressResponse(addr customer.Address) AddressResponse {
	return AddressResponse{
		ID:         addr.AddressID,
		CustomerID: addr.CustomerID,
		Name:       addr.Name,
		Street:     addr.Street,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
	}
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{Addresses: []AddressResponse{}}
	}

	addresses := make([]AddressResponse, len(cust.Addresses))
	for i, addr := range cust.Addresses {
		addresses[i] = NewAddressResponse(addr)
	}

	return CustomerResponse{
		ID:        cust.CustomerID,
		FirstName: cust.FirstName,
		LastName:  cust.LastName,
		Active:    cust.Active,
		Addresses: addresses,
		CreatedAt: cust.CreatedAt,
		UpdatedAt: cust.UpdatedAt,
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, len(customers))
	for i, cust := range customers {
		resp[i] = NewCustomerResponse(cust)
	}
	return resp
}

var truthyTokens = map[string]bool{
	"yes":  true,
	"y":    true,
	"true": true,
	"t":    true,
	"1":    true,
}

// ParseBool reads a query flag. Anything outside the truthy set is false.
func ParseBool(token string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(token))]
}
