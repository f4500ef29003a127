package services

import (
	"context"
	"errors"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/repository"
)

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*model.Customer, error)
	List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error) // results, totalCount
	Update(ctx context.Context, id string, p model.CustomerUpdateRequest) (*model.Customer, error)
	SetActive(ctx context.Context, id string, active bool) (*model.Customer, error)
	CountByActive(ctx context.Context, active bool) (int64, error)
}

type OutstandingCounter interface {
	CountOutstandingCustomers(ctx context.Context) (int64, error)
}

type CustomerService struct {
	customerRepo CustomerRepository
	outstanding  OutstandingCounter
	summary      *SummaryBuilder
	events       EventPublisher
	paging       model.Paging
}

func NewCustomerService(customerRepo CustomerRepository, outstanding OutstandingCounter, summary *SummaryBuilder, events EventPublisher) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		outstanding:  outstanding,
		summary:      summary,
		events:       events,
		paging:       model.DefaultPaging(),
	}
}

// WithPaging overrides the default page size bounds.
func (s *CustomerService) WithPaging(p model.Paging) *CustomerService {
	s.paging = p
	return s
}

func (s *CustomerService) List(ctx context.Context, f model.CustomerFilter) (*model.CustomerPage, error) {
	f.Page, f.Limit = s.paging.Normalize(f.Page, f.Limit)

	items, total, err := s.customerRepo.List(ctx, f)
	if err != nil {
		return nil, Internal("customers.list", "Server error while fetching customers", err)
	}

	return &model.CustomerPage{
		Items:      items,
		Pagination: model.NewPagination(f.Page, f.Limit, len(items), total),
	}, nil
}

// Get returns the customer with its transaction summary. Inactive customers
// are returned as well.
func (s *CustomerService) Get(ctx context.Context, id string) (*model.CustomerDetail, error) {
	c, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, Internal("customers.get", "Server error while fetching customer", err, "customer_id", id)
	}

	d, err := s.summary.Build(ctx, c)
	if err != nil {
		return nil, Internal("customers.get", "Server error while fetching customer", err, "customer_id", id)
	}
	return d, nil
}

func (s *CustomerService) Create(ctx context.Context, p model.CustomerCreateRequest) (*model.Customer, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, Validation(err.Error())
	}

	taken, err := s.phoneTaken(ctx, p.Phone, "")
	if err != nil {
		return nil, Internal("customers.create", "Server error while creating customer", err)
	}
	if taken {
		return nil, ErrDuplicatePhone
	}

	c := &model.Customer{
		Name:     p.Name,
		Phone:    p.Phone,
		Address:  p.Address,
		Notes:    p.Notes,
		IsActive: true,
	}
	c.CreditLimit = p.CreditLimit.Float()

	created, err := s.customerRepo.Create(ctx, c)
	if err != nil {
		return nil, Internal("customers.create", "Server error while creating customer", err)
	}

	publish(ctx, s.events, model.EventCustomerCreated, created.ID, created)
	return created, nil
}

func (s *CustomerService) Update(ctx context.Context, id string, p model.CustomerUpdateRequest) (*model.Customer, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, Validation(err.Error())
	}

	if p.Phone != nil {
		taken, err := s.phoneTaken(ctx, *p.Phone, id)
		if err != nil {
			return nil, Internal("customers.update", "Server error while updating customer", err, "customer_id", id)
		}
		if taken {
			return nil, ErrDuplicatePhone
		}
	}

	var (
		c   *model.Customer
		err error
	)
	if p.IsEmpty() {
		c, err = s.customerRepo.FindByID(ctx, id)
	} else {
		c, err = s.customerRepo.Update(ctx, id, p)
	}
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, Internal("customers.update", "Server error while updating customer", err, "customer_id", id)
	}
	return c, nil
}

// SoftDelete deactivates the customer. Deactivating an inactive customer
// succeeds.
func (s *CustomerService) SoftDelete(ctx context.Context, id string) (*model.Customer, error) {
	c, err := s.customerRepo.SetActive(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, Internal("customers.delete", "Server error while deleting customer", err, "customer_id", id)
	}

	publish(ctx, s.events, model.EventCustomerDeleted, c.ID, c)
	return c, nil
}

// Stats reports TotalCustomers as the active count, the same figure as
// ActiveCustomers.
func (s *CustomerService) Stats(ctx context.Context) (*model.CustomerStats, error) {
	const msg = "Server error while fetching customer statistics"

	active, err := s.customerRepo.CountByActive(ctx, true)
	if err != nil {
		return nil, Internal("customers.stats", msg, err)
	}
	inactive, err := s.customerRepo.CountByActive(ctx, false)
	if err != nil {
		return nil, Internal("customers.stats", msg, err)
	}
	outstanding, err := s.outstanding.CountOutstandingCustomers(ctx)
	if err != nil {
		return nil, Internal("customers.stats", msg, err)
	}

	return &model.CustomerStats{
		TotalCustomers:       active,
		ActiveCustomers:      active,
		InactiveCustomers:    inactive,
		OutstandingCustomers: outstanding,
	}, nil
}

// phoneTaken reports whether phone belongs to a customer other than exceptID.
func (s *CustomerService) phoneTaken(ctx context.Context, phone, exceptID string) (bool, error) {
	existing, err := s.customerRepo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != exceptID, nil
}
