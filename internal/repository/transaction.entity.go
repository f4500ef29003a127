package repository

import (
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
)

type TransactionEntity struct {
	pg.Model
	CustomerID  string     `db:"customer_id"  gorm:"column:customer_id;type:varchar(36);not null;index:idx_transactions_customer_date,priority:1"`
	Type        *string    `db:"type"         gorm:"column:type;type:varchar(16)"` // null on legacy rows until backfilled
	Date        time.Time  `db:"date"         gorm:"column:date;not null;index:idx_transactions_customer_date,priority:2,sort:desc;index:idx_transactions_date,sort:desc"`
	Weight      float64    `db:"weight"       gorm:"column:weight;not null"`
	WeightUnit  string     `db:"weight_unit"  gorm:"column:weight_unit;type:varchar(16);not null"`
	Rate        float64    `db:"rate"         gorm:"column:rate;not null"`
	RateUnit    string     `db:"rate_unit"    gorm:"column:rate_unit;type:varchar(16);not null"`
	TotalAmount float64    `db:"total_amount" gorm:"column:total_amount;not null"`
	Status      string     `db:"status"       gorm:"column:status;type:varchar(16);not null;index:idx_transactions_status"`
	PaymentDate *time.Time `db:"payment_date" gorm:"column:payment_date"`
	Notes       string     `db:"notes"        gorm:"column:notes;type:text"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

// transactionRow is a transaction joined with its customer's contact fields.
type transactionRow struct {
	TransactionEntity
	CustomerName    string `gorm:"column:customer_name"`
	CustomerPhone   string `gorm:"column:customer_phone"`
	CustomerAddress string `gorm:"column:customer_address"`
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		CustomerID:  m.CustomerID,
		Date:        m.Date,
		Weight:      m.Weight,
		WeightUnit:  string(m.WeightUnit),
		Rate:        m.Rate,
		RateUnit:    string(m.RateUnit),
		TotalAmount: m.TotalAmount,
		Status:      string(m.Status),
		PaymentDate: m.PaymentDate,
		Notes:       m.Notes,
	}
	if m.Type != "" {
		t := string(m.Type)
		e.Type = &t
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Customer:    &model.CustomerRef{ID: e.CustomerID},
		Date:        e.Date,
		Weight:      e.Weight,
		WeightUnit:  model.Unit(e.WeightUnit),
		Rate:        e.Rate,
		RateUnit:    model.Unit(e.RateUnit),
		TotalAmount: e.TotalAmount,
		Status:      model.TransactionStatus(e.Status),
		PaymentDate: e.PaymentDate,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Type != nil {
		m.Type = model.TransactionType(*e.Type)
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func (r *transactionRow) toModel(withAddress bool) *model.Transaction {
	m := toTransactionModel(&r.TransactionEntity)
	m.Customer.Name = r.CustomerName
	m.Customer.Phone = r.CustomerPhone
	if withAddress {
		m.Customer.Address = r.CustomerAddress
	}
	return m
}

func transactionPatchColumns(p model.TransactionPatch) map[string]any {
	cols := make(map[string]any)
	if p.Type != nil {
		cols["type"] = string(*p.Type)
	}
	if p.Date != nil {
		cols["date"] = *p.Date
	}
	if p.Weight != nil {
		cols["weight"] = *p.Weight
	}
	if p.WeightUnit != nil {
		cols["weight_unit"] = string(*p.WeightUnit)
	}
	if p.Rate != nil {
		cols["rate"] = *p.Rate
	}
	if p.RateUnit != nil {
		cols["rate_unit"] = string(*p.RateUnit)
	}
	if p.TotalAmount != nil {
		cols["total_amount"] = *p.TotalAmount
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.PaymentDate != nil {
		cols["payment_date"] = *p.PaymentDate
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	return cols
}
