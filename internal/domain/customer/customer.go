package customer

import "time"

type Customer struct {
	CustomerID int64
	FirstName  string
	LastName   string
	Active     bool
	Addresses  []Address
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Address always belongs to exactly one customer; CustomerID is set by the store.
type Address struct {
	AddressID  int64
	CustomerID int64
	Name       string
	Street     string
	City       string
	State      string
	PostalCode string
}

func NewCustomer(firstName, lastName string, addresses ...Address) *Customer {
	return &Customer{
		FirstName: firstName,
		LastName:  lastName,
		Active:    true,
		Addresses: addresses,
	}
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Clone returns a deep copy so stores never share address slices with callers.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Addresses != nil {
		cp.Addresses = make([]Address, len(c.Addresses))
		copy(cp.Addresses, c.Addresses)
	}
	return &cp
}

// ListFilter narrows FindAll. Zero value lists every customer.
type ListFilter struct {
	Active    *bool
	FirstName string
	LastName  string
}

func (f ListFilter) ByName() bool {
	return f.FirstName != "" || f.LastName != ""
}

func ActiveFilter(active bool) ListFilter {
	return ListFilter{Active: &active}
}

func NameFilter(firstName, lastName string) ListFilter {
	return ListFilter{FirstName: firstName, LastName: lastName}
}
