package repository

import (
	"context"
	"strings"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, errors.Wrap(err, "customer repository: create")
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	if !pg.IsValidID(id) {
		return nil, ErrCustomerNotFound
	}
	var entity CustomerEntity
	err := r.Read(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, errors.Wrap(err, "customer repository: find by id")
	}

	return toCustomerModel(&entity), nil
}

// FindByPhone looks the phone up across active and inactive customers.
func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).
		Where("phone = ?", phone).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, errors.Wrap(err, "customer repository: find by phone")
	}

	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int64, error) {
	page, limit := model.NormalizePage(f.Page, f.Limit, 0)

	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "customer repository: count")
	}

	var entities []*CustomerEntity
	err := r.filtered(ctx, f).
		Order("created_at DESC").
		Limit(limit).
		Offset(model.Offset(page, limit)).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "customer repository: list")
	}

	return toCustomerModels(entities), total, nil
}

func (r *CustomerRepository) filtered(ctx context.Context, f model.CustomerFilter) *gorm.DB {
	q := r.Read(ctx).Model(&CustomerEntity{})

	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(phone) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if active := f.ActiveFilter(); active != nil {
		q = q.Where("is_active = ?", *active)
	}
	return q
}

// Update applies a partial patch and returns the stored record.
func (r *CustomerRepository) Update(ctx context.Context, id string, p model.CustomerUpdateRequest) (*model.Customer, error) {
	if !pg.IsValidID(id) {
		return nil, ErrCustomerNotFound
	}
	result := r.Write(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", id).
		Updates(customerUpdateColumns(p))

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "customer repository: update")
	}
	if result.RowsAffected == 0 {
		return nil, ErrCustomerNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *CustomerRepository) SetActive(ctx context.Context, id string, active bool) (*model.Customer, error) {
	return r.Update(ctx, id, model.CustomerUpdateRequest{IsActive: &active})
}

func (r *CustomerRepository) CountByActive(ctx context.Context, active bool) (int64, error) {
	var n int64
	err := r.Read(ctx).
		Model(&CustomerEntity{}).
		Where("is_active = ?", active).
		Count(&n).
		Error
	if err != nil {
		return 0, errors.Wrap(err, "customer repository: count by active")
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
