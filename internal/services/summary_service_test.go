package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryBuilder_Build(t *testing.T) {
	ctx := context.Background()
	c := &model.Customer{ID: "c1"}
	receive := model.AmountFilter{CustomerID: "c1", Type: model.TransactionTypeReceive, ExcludeDeleted: true}
	give := model.AmountFilter{CustomerID: "c1", Type: model.TransactionTypeGive, ExcludeDeleted: true}
	owed := model.AmountFilter{CustomerID: "c1", Statuses: model.OutstandingStatuses}

	t.Run("last transaction is the newest", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		newest := &model.Transaction{ID: "t2", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Status: model.TransactionStatusPending, TotalAmount: 20000}
		older := &model.Transaction{ID: "t1", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Status: model.TransactionStatusPaid, TotalAmount: 10}

		repo.On("SumAmount", ctx, receive).Return(0.0, nil)
		repo.On("SumAmount", ctx, give).Return(20000.0, nil)
		repo.On("Recent", ctx, "c1", RecentTransactionsLimit).Return([]*model.Transaction{newest, older}, nil)

		d, err := NewSummaryBuilder(repo).Build(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d.TotalPurchases)
		assert.Equal(t, 20000.0, d.OutstandingBalance)
		require.NotNil(t, d.LastTransaction)
		assert.Equal(t, 20000.0, d.LastTransaction.Amount)
		assert.Equal(t, model.TransactionStatusPending, d.LastTransaction.Status)
		assert.Len(t, d.RecentTransactions, 2)
		repo.AssertNotCalled(t, "SumAmount", ctx, owed)
	})

	t.Run("falls back to pending and overdue total", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		repo.On("SumAmount", ctx, receive).Return(500.0, nil)
		repo.On("SumAmount", ctx, give).Return(0.0, nil)
		repo.On("SumAmount", ctx, owed).Return(75.0, nil)
		repo.On("Recent", ctx, "c1", RecentTransactionsLimit).Return([]*model.Transaction{}, nil)

		d, err := NewSummaryBuilder(repo).Build(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, 500.0, d.TotalPurchases)
		assert.Equal(t, 75.0, d.OutstandingBalance)
		assert.Nil(t, d.LastTransaction)
		repo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		repo.On("SumAmount", ctx, receive).Return(0.0, errors.New("boom"))

		_, err := NewSummaryBuilder(repo).Build(ctx, c)
		assert.Error(t, err)
	})
}
