package model

import (
	"errors"
	"strings"
	"time"
)

type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	CreditLimit float64   `json:"creditLimit"`
	Notes       string    `json:"notes,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CustomerCreateRequest is the input for creating a customer.
type CustomerCreateRequest struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	CreditLimit *Number `json:"creditLimit"`
	Notes       string  `json:"notes"`
}

func (p *CustomerCreateRequest) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.Notes = strings.TrimSpace(p.Notes)
}

func (p CustomerCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Phone == "" {
		return errors.New("phone is required")
	}
	if !p.CreditLimit.Valid() {
		return errors.New("creditLimit must be a number")
	}
	if p.CreditLimit != nil && *p.CreditLimit < 0 {
		return errors.New("creditLimit cannot be negative")
	}
	return nil
}

// CustomerUpdateRequest is a partial patch; nil fields are left untouched.
type CustomerUpdateRequest struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	CreditLimit *Number `json:"creditLimit"`
	Notes       *string `json:"notes"`
	IsActive    *bool   `json:"isActive"`
}

func (p *CustomerUpdateRequest) Normalize() {
	for _, s := range []*string{p.Name, p.Phone, p.Address, p.Notes} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (p CustomerUpdateRequest) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return errors.New("name cannot be empty")
	}
	if p.Phone != nil && *p.Phone == "" {
		return errors.New("phone cannot be empty")
	}
	if !p.CreditLimit.Valid() {
		return errors.New("creditLimit must be a number")
	}
	if p.CreditLimit != nil && *p.CreditLimit < 0 {
		return errors.New("creditLimit cannot be negative")
	}
	return nil
}

func (p CustomerUpdateRequest) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil &&
		p.CreditLimit == nil && p.Notes == nil && p.IsActive == nil
}

// CustomerFilter controls customer List queries.
type CustomerFilter struct {
	Search string // substring of name or phone, case-insensitive
	Status string // "active" selects active customers, any other non-empty value inactive ones
	Page   int
	Limit  int
}

// ActiveFilter translates Status into an isActive predicate. A nil result
// means no filtering.
func (f CustomerFilter) ActiveFilter() *bool {
	if f.Status == "" {
		return nil
	}
	active := f.Status == "active"
	return &active
}

type CustomerStats struct {
	TotalCustomers       int64 `json:"totalCustomers"`
	ActiveCustomers      int64 `json:"activeCustomers"`
	InactiveCustomers    int64 `json:"inactiveCustomers"`
	OutstandingCustomers int64 `json:"outstandingCustomers"`
}

type LastTransaction struct {
	Date   time.Time         `json:"date"`
	Status TransactionStatus `json:"status"`
	Amount float64           `json:"amount"`
}

// CustomerDetail is a customer enriched with figures derived from its
// transactions.
type CustomerDetail struct {
	*Customer
	TotalPurchases     float64          `json:"totalPurchases"`
	OutstandingBalance float64          `json:"outstandingBalance"`
	LastTransaction    *LastTransaction `json:"lastTransaction"`
	RecentTransactions []*Transaction   `json:"recentTransactions"`
}
