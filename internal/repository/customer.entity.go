package repository

import (
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
)

type CustomerEntity struct {
	pg.Model
	Name        string  `db:"name"         gorm:"column:name;type:varchar(255);not null"`
	Phone       string  `db:"phone"        gorm:"column:phone;type:varchar(32);not null;index"`
	Address     string  `db:"address"      gorm:"column:address;type:text"`
	CreditLimit float64 `db:"credit_limit" gorm:"column:credit_limit;not null;default:0"`
	Notes       string  `db:"notes"        gorm:"column:notes;type:text"`
	IsActive    bool    `db:"is_active"    gorm:"column:is_active;not null;index"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Name:        m.Name,
		Phone:       m.Phone,
		Address:     m.Address,
		CreditLimit: m.CreditLimit,
		Notes:       m.Notes,
		IsActive:    m.IsActive,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:          e.ID,
		Name:        e.Name,
		Phone:       e.Phone,
		Address:     e.Address,
		CreditLimit: e.CreditLimit,
		Notes:       e.Notes,
		IsActive:    e.IsActive,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}

func customerUpdateColumns(p model.CustomerUpdateRequest) map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.CreditLimit != nil {
		cols["credit_limit"] = p.CreditLimit.Float()
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	return cols
}
