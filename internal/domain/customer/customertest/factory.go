// Package customertest builds fake customers and addresses for tests.
package customertest

import (
	"customer-service/internal/domain/customer"

	"github.com/brianvoe/gofakeit/v6"
)

var addressNames = []string{"home", "work", "other"}

func NewAddress() customer.Address {
	return customer.Address{
		Name:       gofakeit.RandomString(addressNames),
		Street:     gofakeit.Street(),
		City:       gofakeit.City(),
		State:      gofakeit.StateAbr(),
		PostalCode: gofakeit.Zip(),
	}
}

// NewCustomer returns an unsaved customer with one address and the given active flag.
func NewCustomer(active bool) *customer.Customer {
	cust := customer.NewCustomer(gofakeit.FirstName(), gofakeit.LastName(), NewAddress())
	cust.Active = active
	return cust
}

// NewCustomers returns n unsaved customers with a random active flag each.
func NewCustomers(n int) []*customer.Customer {
	customers := make([]*customer.Customer, n)
	for i := range customers {
		customers[i] = NewCustomer(gofakeit.Bool())
	}
	return customers
}
