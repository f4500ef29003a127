package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
)

const joinedColumns = "t.*, c.name AS customer_name, c.phone AS customer_phone, c.address AS customer_address"

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, errors.Wrap(err, "transaction repository: create")
	}

	return toTransactionModel(entity), nil
}

// FindByID returns the transaction joined with the customer's name, phone
// and address. Deleted transactions are still returned.
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	if !pg.IsValidID(id) {
		return nil, ErrTransactionNotFound
	}
	var rows []*transactionRow
	err := r.joined(ctx).
		Where("t.id = ?", id).
		Limit(1).
		Scan(&rows).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "transaction repository: find by id")
	}
	if len(rows) == 0 {
		return nil, ErrTransactionNotFound
	}
	return rows[0].toModel(true), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	page, limit := model.NormalizePage(f.Page, f.Limit, 0)

	var total int64
	if err := applyTransactionFilter(r.Read(ctx).Table("transactions AS t"), f).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "transaction repository: count")
	}

	var rows []*transactionRow
	err := applyTransactionFilter(r.joined(ctx), f).
		Order("t.date DESC").
		Limit(limit).
		Offset(model.Offset(page, limit)).
		Scan(&rows).
		Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "transaction repository: list")
	}

	items := make([]*model.Transaction, len(rows))
	for i, row := range rows {
		items[i] = row.toModel(false)
	}
	return items, total, nil
}

func (r *TransactionRepository) joined(ctx context.Context) *gorm.DB {
	return r.Read(ctx).
		Table("transactions AS t").
		Select(joinedColumns).
		Joins("LEFT JOIN customers AS c ON c.id = t.customer_id")
}

func applyTransactionFilter(q *gorm.DB, f model.TransactionFilter) *gorm.DB {
	if f.CustomerID != "" {
		q = q.Where("t.customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("t.status = ?", string(f.Status))
	} else if f.ExcludesDeleted() {
		q = q.Where("t.status <> ?", string(model.TransactionStatusDeleted))
	}
	if f.StartDate != nil {
		q = q.Where("t.date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("t.date <= ?", *f.EndDate)
	}
	return q
}

// Update applies the patch and returns the record joined with the customer's
// name and phone.
func (r *TransactionRepository) Update(ctx context.Context, id string, p model.TransactionPatch) (*model.Transaction, error) {
	if !pg.IsValidID(id) {
		return nil, ErrTransactionNotFound
	}
	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(transactionPatchColumns(p))

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "transaction repository: update")
	}
	if result.RowsAffected == 0 {
		return nil, ErrTransactionNotFound
	}

	txn, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	txn.Customer.Address = ""
	return txn, nil
}

// SumAmount totals total_amount over the transactions selected by f.
func (r *TransactionRepository) SumAmount(ctx context.Context, f model.AmountFilter) (float64, error) {
	q := r.Read(ctx).Model(&TransactionEntity{})
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.ExcludeDeleted {
		q = q.Where("status <> ?", string(model.TransactionStatusDeleted))
	}

	var res struct {
		Total float64
	}
	if err := q.Select("COALESCE(SUM(total_amount), 0) AS total").Scan(&res).Error; err != nil {
		return 0, errors.Wrap(err, "transaction repository: sum amount")
	}
	return res.Total, nil
}

// Recent returns up to limit non-deleted transactions of a customer, newest
// first.
func (r *TransactionRepository) Recent(ctx context.Context, customerID string, limit int) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("customer_id = ?", customerID).
		Where("status <> ?", string(model.TransactionStatusDeleted)).
		Order("date DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "transaction repository: recent")
	}
	return toTransactionModels(entities), nil
}

// CountOutstandingCustomers counts distinct customers with at least one
// pending or overdue transaction.
func (r *TransactionRepository) CountOutstandingCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := r.Read(ctx).
		Model(&TransactionEntity{}).
		Where("status IN ?", statusStrings(model.OutstandingStatuses)).
		Distinct("customer_id").
		Count(&n).
		Error
	if err != nil {
		return 0, errors.Wrap(err, "transaction repository: count outstanding customers")
	}
	return n, nil
}

func (r *TransactionRepository) Stats(ctx context.Context, f model.StatsFilter) (*model.TransactionStats, error) {
	stats := &model.TransactionStats{
		StatusStats:  []*model.StatusStats{},
		MonthlyStats: []*model.MonthlyStats{},
	}

	err := r.statsScope(ctx, f).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount").
		Scan(&stats.TotalStats).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "transaction repository: total stats")
	}

	err = r.statsScope(ctx, f).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount").
		Group("status").
		Order("status").
		Scan(&stats.StatusStats).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "transaction repository: status stats")
	}

	year, month := r.datePartExpr("year"), r.datePartExpr("month")
	err = r.statsScope(ctx, f).
		Select(fmt.Sprintf("%s AS year, %s AS month, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount", year, month)).
		Group(year + ", " + month).
		Order("year DESC, month DESC").
		Limit(model.MonthlyStatsLimit).
		Scan(&stats.MonthlyStats).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "transaction repository: monthly stats")
	}

	return stats, nil
}

func (r *TransactionRepository) statsScope(ctx context.Context, f model.StatsFilter) *gorm.DB {
	q := r.Read(ctx).Model(&TransactionEntity{})
	if !f.IncludeDeleted {
		q = q.Where("status <> ?", string(model.TransactionStatusDeleted))
	}
	if f.StartDate != nil {
		q = q.Where("date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("date <= ?", *f.EndDate)
	}
	return q
}

func (r *TransactionRepository) datePartExpr(part string) string {
	if r.Dialect() == "sqlite" {
		format := "%Y"
		if part == "month" {
			format = "%m"
		}
		return fmt.Sprintf("CAST(strftime('%s', date) AS INTEGER)", format)
	}
	return fmt.Sprintf("CAST(EXTRACT(%s FROM date) AS INTEGER)", part)
}

// BackfillType assigns a type to every transaction stored without one:
// pending ones become give, everything else receive.
func (r *TransactionRepository) BackfillType(ctx context.Context) (*model.BackfillResult, error) {
	res := &model.BackfillResult{}
	missing := "type IS NULL OR type = ''"

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).Model(&TransactionEntity{}).Where(missing).Count(&res.Matched).Error; err != nil {
			return errors.Wrap(err, "transaction repository: count untyped")
		}
		if res.Matched == 0 {
			return nil
		}

		result := r.Write(ctx).
			Model(&TransactionEntity{}).
			Where(missing).
			Update("type", gorm.Expr("CASE WHEN status = ? THEN ? ELSE ? END",
				string(model.TransactionStatusPending),
				string(model.TransactionTypeGive),
				string(model.TransactionTypeReceive)))
		if result.Error != nil {
			return errors.Wrap(result.Error, "transaction repository: backfill type")
		}
		res.Modified = result.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func statusStrings(statuses []model.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
