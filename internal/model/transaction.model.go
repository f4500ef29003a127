package model

import (
	"errors"
	"fmt"
	"time"
)

type TransactionType string

const (
	// TransactionTypeReceive is money or goods coming in, settled by default.
	TransactionTypeReceive TransactionType = "receive"
	// TransactionTypeGive is money or goods going out, outstanding until paid.
	TransactionTypeGive TransactionType = "give"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeReceive || t == TransactionTypeGive
}

// TransactionStatus is the lifecycle state of a transaction. Deleted is a
// soft-delete marker and is only honoured by query filters.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusPaid    TransactionStatus = "paid"
	TransactionStatusOverdue TransactionStatus = "overdue"
	TransactionStatusDeleted TransactionStatus = "deleted"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusPaid, TransactionStatusOverdue, TransactionStatusDeleted:
		return true
	}
	return false
}

// OutstandingStatuses are the statuses that still owe money.
var OutstandingStatuses = []TransactionStatus{TransactionStatusPending, TransactionStatusOverdue}

// CustomerRef is the subset of customer fields joined onto a transaction.
type CustomerRef struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Transaction struct {
	ID          string            `json:"id"`
	CustomerID  string            `json:"-"`
	Customer    *CustomerRef      `json:"customer"`
	Type        TransactionType   `json:"type,omitempty"`
	Date        time.Time         `json:"date"`
	Weight      float64           `json:"weight"`
	WeightUnit  Unit              `json:"weightUnit"`
	Rate        float64           `json:"rate"`
	RateUnit    Unit              `json:"rateUnit"`
	TotalAmount float64           `json:"totalAmount"`
	Status      TransactionStatus `json:"status"`
	PaymentDate *time.Time        `json:"paymentDate,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// TransactionCreateRequest is the input for recording a transaction.
// Description is accepted as an alias of Notes.
type TransactionCreateRequest struct {
	Customer    string  `json:"customer"`
	Type        string  `json:"type"`
	Date        string  `json:"date"`
	Weight      *Number `json:"weight"`
	WeightUnit  string  `json:"weightUnit"`
	Rate        *Number `json:"rate"`
	RateUnit    string  `json:"rateUnit"`
	TotalAmount *Number `json:"totalAmount"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes"`
	Description string  `json:"description"`
}

func (p TransactionCreateRequest) Validate() error {
	if p.Customer == "" {
		return errors.New("customer is required")
	}
	if p.Weight == nil || p.Rate == nil {
		return ErrWeightAndRateRequired
	}
	if !p.Weight.Valid() || !p.Rate.Valid() {
		return ErrNotANumber
	}
	if !p.TotalAmount.Valid() {
		return errors.New("totalAmount must be a number")
	}
	if *p.Weight < 0 {
		return errors.New("weight cannot be negative")
	}
	if *p.Rate < 0 {
		return errors.New("rate cannot be negative")
	}
	if p.TotalAmount != nil && *p.TotalAmount < 0 {
		return errors.New("totalAmount cannot be negative")
	}
	if p.Type != "" && !TransactionType(p.Type).Valid() {
		return fmt.Errorf("invalid type %q: must be receive or give", p.Type)
	}
	if p.Status != "" && !TransactionStatus(p.Status).Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

func (p TransactionCreateRequest) ResolvedNotes() string {
	if p.Notes != "" {
		return p.Notes
	}
	return p.Description
}

// TransactionUpdateRequest is a partial patch; nil fields are left untouched.
type TransactionUpdateRequest struct {
	Type        *string `json:"type"`
	Date        *string `json:"date"`
	Weight      *Number `json:"weight"`
	WeightUnit  *string `json:"weightUnit"`
	Rate        *Number `json:"rate"`
	RateUnit    *string `json:"rateUnit"`
	TotalAmount *Number `json:"totalAmount"`
	Status      *string `json:"status"`
	PaymentDate *string `json:"paymentDate"`
	Notes       *string `json:"notes"`
}

func (p TransactionUpdateRequest) Validate() error {
	if !p.Weight.Valid() || !p.Rate.Valid() {
		return ErrNotANumber
	}
	if !p.TotalAmount.Valid() {
		return errors.New("totalAmount must be a number")
	}
	if p.Weight != nil && *p.Weight < 0 {
		return errors.New("weight cannot be negative")
	}
	if p.Rate != nil && *p.Rate < 0 {
		return errors.New("rate cannot be negative")
	}
	if p.TotalAmount != nil && *p.TotalAmount < 0 {
		return errors.New("totalAmount cannot be negative")
	}
	if p.Type != nil && !TransactionType(*p.Type).Valid() {
		return fmt.Errorf("invalid type %q: must be receive or give", *p.Type)
	}
	if p.Status != nil && !TransactionStatus(*p.Status).Valid() {
		return fmt.Errorf("invalid status %q", *p.Status)
	}
	return nil
}

// TouchesAmount reports whether the patch changes any input of the amount
// calculation.
func (p TransactionUpdateRequest) TouchesAmount() bool {
	return p.Weight != nil || p.Rate != nil || p.WeightUnit != nil || p.RateUnit != nil
}

type TransactionStatusRequest struct {
	Status      string  `json:"status"`
	PaymentDate *string `json:"paymentDate"`
	Notes       *string `json:"notes"`
}

func (p TransactionStatusRequest) Validate() error {
	if p.Status == "" {
		return errors.New("status is required")
	}
	if !TransactionStatus(p.Status).Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

// TransactionPatch is the set of column changes handed to the repository.
type TransactionPatch struct {
	Type        *TransactionType
	Date        *time.Time
	Weight      *float64
	WeightUnit  *Unit
	Rate        *float64
	RateUnit    *Unit
	TotalAmount *float64
	Status      *TransactionStatus
	PaymentDate *time.Time
	Notes       *string
}

// TransactionFilter controls transaction List queries.
type TransactionFilter struct {
	CustomerID     string
	Status         TransactionStatus
	StartDate      *time.Time // inclusive
	EndDate        *time.Time // inclusive
	IncludeDeleted bool
	Page           int
	Limit          int
}

// ExcludesDeleted reports whether deleted transactions are implicitly
// filtered out.
func (f TransactionFilter) ExcludesDeleted() bool {
	return f.Status == "" && !f.IncludeDeleted
}

// AmountFilter selects the transactions summed by SumAmount.
type AmountFilter struct {
	CustomerID     string
	Type           TransactionType
	Statuses       []TransactionStatus
	ExcludeDeleted bool
}

type StatsFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	IncludeDeleted bool
}

type TotalStats struct {
	Count       int64   `json:"totalTransactions"`
	TotalAmount float64 `json:"totalAmount"`
}

type StatusStats struct {
	Status      TransactionStatus `json:"status"`
	Count       int64             `json:"count"`
	TotalAmount float64           `json:"totalAmount"`
}

type MonthlyStats struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// MonthlyStatsLimit is the number of most recent months reported.
const MonthlyStatsLimit = 12

type TransactionStats struct {
	TotalStats   TotalStats      `json:"totalStats"`
	StatusStats  []*StatusStats  `json:"statusStats"`
	MonthlyStats []*MonthlyStats `json:"monthlyStats"`
}

// BackfillResult reports the outcome of assigning types to legacy
// transactions.
type BackfillResult struct {
	Matched  int64 `json:"totalFound"`
	Modified int64 `json:"updatedCount"`
}
