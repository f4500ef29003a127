package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/poultry-ledger/internal/model"
)

// RecentTransactionsLimit is the number of transactions embedded in a
// customer summary.
const RecentTransactionsLimit = 10

type SummaryRepository interface {
	SumAmount(ctx context.Context, f model.AmountFilter) (float64, error)
	Recent(ctx context.Context, customerID string, limit int) ([]*model.Transaction, error)
}

// SummaryBuilder derives purchase and balance figures for a customer from
// its transactions.
type SummaryBuilder struct {
	repo SummaryRepository
}

func NewSummaryBuilder(repo SummaryRepository) *SummaryBuilder {
	return &SummaryBuilder{repo: repo}
}

func (b *SummaryBuilder) Build(ctx context.Context, c *model.Customer) (*model.CustomerDetail, error) {
	purchases, err := b.repo.SumAmount(ctx, model.AmountFilter{
		CustomerID:     c.ID,
		Type:           model.TransactionTypeReceive,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("total purchases: %w", err)
	}

	outstanding, err := b.outstanding(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	recent, err := b.repo.Recent(ctx, c.ID, RecentTransactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	d := &model.CustomerDetail{
		Customer:           c,
		TotalPurchases:     purchases,
		OutstandingBalance: outstanding,
		RecentTransactions: recent,
	}
	if len(recent) > 0 {
		last := recent[0]
		d.LastTransaction = &model.LastTransaction{
			Date:   last.Date,
			Status: last.Status,
			Amount: last.TotalAmount,
		}
	}
	return d, nil
}

// outstanding sums give transactions, falling back to the pending and
// overdue total when there are none.
func (b *SummaryBuilder) outstanding(ctx context.Context, customerID string) (float64, error) {
	given, err := b.repo.SumAmount(ctx, model.AmountFilter{
		CustomerID:     customerID,
		Type:           model.TransactionTypeGive,
		ExcludeDeleted: true,
	})
	if err != nil {
		return 0, fmt.Errorf("outstanding by type: %w", err)
	}
	if given != 0 {
		return given, nil
	}

	owed, err := b.repo.SumAmount(ctx, model.AmountFilter{
		CustomerID: customerID,
		Statuses:   model.OutstandingStatuses,
	})
	if err != nil {
		return 0, fmt.Errorf("outstanding by status: %w", err)
	}
	return owed, nil
}
