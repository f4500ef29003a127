package services

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/amount"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/repository"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) // results, totalCount
	Update(ctx context.Context, id string, p model.TransactionPatch) (*model.Transaction, error)
	Stats(ctx context.Context, f model.StatsFilter) (*model.TransactionStats, error)
}

type CustomerFinder interface {
	FindByID(ctx context.Context, id string) (*model.Customer, error)
}

type TransactionService struct {
	transactionRepo TransactionRepository
	customerRepo    CustomerFinder
	events          EventPublisher
	paging          model.Paging
	now             func() time.Time
}

func NewTransactionService(transactionRepo TransactionRepository, customerRepo CustomerFinder, events EventPublisher) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		customerRepo:    customerRepo,
		events:          events,
		paging:          model.DefaultPaging(),
		now:             time.Now,
	}
}

// WithPaging overrides the default page size bounds.
func (s *TransactionService) WithPaging(p model.Paging) *TransactionService {
	s.paging = p
	return s
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) (*model.TransactionPage, error) {
	f.Page, f.Limit = s.paging.Normalize(f.Page, f.Limit)
	if f.Status != "" && !f.Status.Valid() {
		return nil, Validation("Invalid status")
	}

	items, total, err := s.transactionRepo.List(ctx, f)
	if err != nil {
		return nil, Internal("transactions.list", "Server error while fetching transactions", err)
	}

	return &model.TransactionPage{
		Items:      items,
		Pagination: model.NewPagination(f.Page, f.Limit, len(items), total),
	}, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (*model.Transaction, error) {
	txn, err := s.transactionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "transactions.get", "Server error while fetching transaction", id)
	}
	return txn, nil
}

func (s *TransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error) {
	customer, err := s.customerRepo.FindByID(ctx, p.Customer)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, Validation("Customer not found")
		}
		return nil, Internal("transactions.create", "Server error while creating transaction", err, "customer_id", p.Customer)
	}

	if err := p.Validate(); err != nil {
		if errors.Is(err, model.ErrWeightAndRateRequired) {
			return nil, ErrWeightAndRate
		}
		return nil, Validation(err.Error())
	}

	weightUnit, err := model.ParseUnit(p.WeightUnit, model.UnitKg)
	if err != nil {
		return nil, Validation(err.Error())
	}
	rateUnit, err := model.ParseUnit(p.RateUnit, model.UnitKg)
	if err != nil {
		return nil, Validation(err.Error())
	}

	date := s.now().UTC()
	if p.Date != "" {
		parsed, err := model.ParseDate(p.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		date = parsed.UTC()
	}

	// a zero totalAmount counts as not supplied
	var total float64
	if p.TotalAmount.Float() != 0 {
		total = p.TotalAmount.Float()
	} else {
		total, err = amount.Calculate(amount.Input{
			Weight:     p.Weight.Float(),
			WeightUnit: weightUnit,
			Rate:       p.Rate.Float(),
			RateUnit:   rateUnit,
		})
		if err != nil {
			return nil, Validation(err.Error())
		}
	}

	typ, status := resolveTypeAndStatus(model.TransactionType(p.Type), model.TransactionStatus(p.Status))

	txn := &model.Transaction{
		CustomerID:  customer.ID,
		Type:        typ,
		Date:        date,
		Weight:      p.Weight.Float(),
		WeightUnit:  weightUnit,
		Rate:        p.Rate.Float(),
		RateUnit:    rateUnit,
		TotalAmount: total,
		Status:      status,
		Notes:       p.ResolvedNotes(),
	}

	created, err := s.transactionRepo.Create(ctx, txn)
	if err != nil {
		return nil, Internal("transactions.create", "Server error while creating transaction", err, "customer_id", customer.ID)
	}
	created.Customer = &model.CustomerRef{ID: customer.ID, Name: customer.Name, Phone: customer.Phone}

	publish(ctx, s.events, model.EventTransactionCreated, created.ID, created)
	return created, nil
}

// resolveTypeAndStatus applies the create defaults: receive settles as paid,
// anything else starts pending, and an untyped pending transaction is a give.
func resolveTypeAndStatus(typ model.TransactionType, status model.TransactionStatus) (model.TransactionType, model.TransactionStatus) {
	if status == "" {
		if typ == model.TransactionTypeReceive {
			status = model.TransactionStatusPaid
		} else {
			status = model.TransactionStatusPending
		}
	}
	if status == model.TransactionStatusPending && typ == "" {
		typ = model.TransactionTypeGive
	}
	return typ, status
}

// Update applies a partial patch. Touching weight, rate or either unit
// recomputes totalAmount from the patch merged over the stored values.
func (s *TransactionService) Update(ctx context.Context, id string, p model.TransactionUpdateRequest) (*model.Transaction, error) {
	const op, msg = "transactions.update", "Server error while updating transaction"

	if err := p.Validate(); err != nil {
		return nil, Validation(err.Error())
	}

	stored, err := s.transactionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, op, msg, id)
	}

	patch, err := buildPatch(p)
	if err != nil {
		return nil, err
	}

	if p.TouchesAmount() {
		total, err := amount.Calculate(amount.Merge(stored, patch.Weight, patch.WeightUnit, patch.Rate, patch.RateUnit))
		if err != nil {
			return nil, Validation(err.Error())
		}
		patch.TotalAmount = &total
	}

	updated, err := s.transactionRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, s.mapErr(err, op, msg, id)
	}
	return updated, nil
}

func buildPatch(p model.TransactionUpdateRequest) (model.TransactionPatch, error) {
	var patch model.TransactionPatch

	if p.Type != nil {
		t := model.TransactionType(*p.Type)
		patch.Type = &t
	}
	if p.Date != nil {
		d, err := model.ParseDate(*p.Date)
		if err != nil {
			return patch, ErrInvalidDate
		}
		d = d.UTC()
		patch.Date = &d
	}
	patch.Weight = p.Weight.Float64Ptr()
	patch.Rate = p.Rate.Float64Ptr()
	if p.WeightUnit != nil && *p.WeightUnit != "" {
		u, err := model.ParseUnit(*p.WeightUnit, model.UnitKg)
		if err != nil {
			return patch, Validation(err.Error())
		}
		patch.WeightUnit = &u
	}
	if p.RateUnit != nil && *p.RateUnit != "" {
		u, err := model.ParseUnit(*p.RateUnit, model.UnitKg)
		if err != nil {
			return patch, Validation(err.Error())
		}
		patch.RateUnit = &u
	}
	patch.TotalAmount = p.TotalAmount.Float64Ptr()
	if p.Status != nil {
		st := model.TransactionStatus(*p.Status)
		patch.Status = &st
	}
	if p.PaymentDate != nil {
		d, err := model.ParseDate(*p.PaymentDate)
		if err != nil {
			return patch, ErrInvalidDate
		}
		d = d.UTC()
		patch.PaymentDate = &d
	}
	patch.Notes = p.Notes
	return patch, nil
}

// UpdateStatus sets the status with no transition guard. Payment date and
// notes are only replaced when non-empty.
func (s *TransactionService) UpdateStatus(ctx context.Context, id string, p model.TransactionStatusRequest) (*model.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, Validation(err.Error())
	}

	status := model.TransactionStatus(p.Status)
	patch := model.TransactionPatch{Status: &status}
	if p.PaymentDate != nil && *p.PaymentDate != "" {
		d, err := model.ParseDate(*p.PaymentDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		d = d.UTC()
		patch.PaymentDate = &d
	}
	if p.Notes != nil && *p.Notes != "" {
		patch.Notes = p.Notes
	}

	updated, err := s.transactionRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, s.mapErr(err, "transactions.update_status", "Server error while updating transaction status", id)
	}

	publish(ctx, s.events, model.EventTransactionStatusChanged, updated.ID, updated)
	return updated, nil
}

// SoftDelete marks the transaction deleted. The record stays retrievable by
// id.
func (s *TransactionService) SoftDelete(ctx context.Context, id string) (*model.Transaction, error) {
	deleted := model.TransactionStatusDeleted
	updated, err := s.transactionRepo.Update(ctx, id, model.TransactionPatch{Status: &deleted})
	if err != nil {
		return nil, s.mapErr(err, "transactions.delete", "Server error while deleting transaction", id)
	}

	publish(ctx, s.events, model.EventTransactionDeleted, updated.ID, updated)
	return updated, nil
}

func (s *TransactionService) Stats(ctx context.Context, f model.StatsFilter) (*model.TransactionStats, error) {
	stats, err := s.transactionRepo.Stats(ctx, f)
	if err != nil {
		return nil, Internal("transactions.stats", "Server error while fetching transaction statistics", err)
	}
	return stats, nil
}

func (s *TransactionService) mapErr(err error, op, msg, id string) error {
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return ErrTransactionNotFound
	}
	return Internal(op, msg, err, "transaction_id", id)
}
