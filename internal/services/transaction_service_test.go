package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTransactionService(txnRepo *MockTransactionRepository, custRepo *MockCustomerRepository, events EventPublisher) *TransactionService {
	s := NewTransactionService(txnRepo, custRepo, events)
	s.now = func() time.Time { return fixedNow }
	return s
}

// echoCreate makes the mocked Create return its input with an id.
func echoCreate(txnRepo *MockTransactionRepository) *mock.Call {
	return txnRepo.On("Create", mock.Anything, mock.Anything).Return(func(_ context.Context, txn *model.Transaction) (*model.Transaction, error) {
		out := *txn
		out.ID = "t1"
		return &out, nil
	})
}

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()
	customer := &model.Customer{ID: "c1", Name: "A", Phone: "1"}

	tests := []struct {
		name       string
		req        model.TransactionCreateRequest
		wantType   model.TransactionType
		wantStatus model.TransactionStatus
		wantTotal  float64
	}{
		{
			name:       "give defaults to pending",
			req:        model.TransactionCreateRequest{Type: "give", Weight: model.Num(100.0), Rate: model.Num(200.0)},
			wantType:   model.TransactionTypeGive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  20000,
		},
		{
			name:       "receive defaults to paid",
			req:        model.TransactionCreateRequest{Type: "receive", Weight: model.Num(10.0), Rate: model.Num(5.0)},
			wantType:   model.TransactionTypeReceive,
			wantStatus: model.TransactionStatusPaid,
			wantTotal:  50,
		},
		{
			name:       "untyped pending becomes give",
			req:        model.TransactionCreateRequest{Weight: model.Num(1.0), Rate: model.Num(1.0)},
			wantType:   model.TransactionTypeGive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  1,
		},
		{
			name:       "untyped paid stays untyped",
			req:        model.TransactionCreateRequest{Status: "paid", Weight: model.Num(1.0), Rate: model.Num(1.0)},
			wantType:   "",
			wantStatus: model.TransactionStatusPaid,
			wantTotal:  1,
		},
		{
			name:       "explicit pending receive keeps type",
			req:        model.TransactionCreateRequest{Type: "receive", Status: "pending", Weight: model.Num(1.0), Rate: model.Num(1.0)},
			wantType:   model.TransactionTypeReceive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  1,
		},
		{
			name:       "supplied total is trusted",
			req:        model.TransactionCreateRequest{Type: "give", Weight: model.Num(100.0), Rate: model.Num(200.0), TotalAmount: model.Num(123.0)},
			wantType:   model.TransactionTypeGive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  123,
		},
		{
			name:       "zero total is derived",
			req:        model.TransactionCreateRequest{Type: "give", Weight: model.Num(2.0), Rate: model.Num(3.0), TotalAmount: model.Num(0.0)},
			wantType:   model.TransactionTypeGive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  6,
		},
		{
			name:       "mixed units",
			req:        model.TransactionCreateRequest{Type: "give", Weight: model.Num(2.0), WeightUnit: "quintal", Rate: model.Num(50.0), RateUnit: "kg"},
			wantType:   model.TransactionTypeGive,
			wantStatus: model.TransactionStatusPending,
			wantTotal:  10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txnRepo := new(MockTransactionRepository)
			custRepo := new(MockCustomerRepository)
			service := newTransactionService(txnRepo, custRepo, nil)

			custRepo.On("FindByID", ctx, "c1").Return(customer, nil)
			echoCreate(txnRepo)

			req := tt.req
			req.Customer = "c1"
			created, err := service.Create(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, created.Type)
			assert.Equal(t, tt.wantStatus, created.Status)
			assert.InDelta(t, tt.wantTotal, created.TotalAmount, 1e-9)
			assert.Equal(t, &model.CustomerRef{ID: "c1", Name: "A", Phone: "1"}, created.Customer)
		})
	}
}

func TestTransactionService_Create_Fields(t *testing.T) {
	ctx := context.Background()
	customer := &model.Customer{ID: "c1"}

	setup := func() (*TransactionService, *MockTransactionRepository, *MockCustomerRepository) {
		txnRepo := new(MockTransactionRepository)
		custRepo := new(MockCustomerRepository)
		custRepo.On("FindByID", ctx, "c1").Return(customer, nil)
		return newTransactionService(txnRepo, custRepo, nil), txnRepo, custRepo
	}

	t.Run("date defaults to now and units to kg", func(t *testing.T) {
		service, txnRepo, _ := setup()
		echoCreate(txnRepo)

		created, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		require.NoError(t, err)
		assert.Equal(t, fixedNow, created.Date)
		assert.Equal(t, model.UnitKg, created.WeightUnit)
		assert.Equal(t, model.UnitKg, created.RateUnit)
	})

	t.Run("parsed date", func(t *testing.T) {
		service, txnRepo, _ := setup()
		echoCreate(txnRepo)

		created, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Date: "2024-03-15", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), created.Date)
	})

	t.Run("description is used as notes", func(t *testing.T) {
		service, txnRepo, _ := setup()
		echoCreate(txnRepo)

		created, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Description: "via description", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		require.NoError(t, err)
		assert.Equal(t, "via description", created.Notes)
	})

	t.Run("invalid date", func(t *testing.T) {
		service, _, _ := setup()

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Date: "yesterday", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("weight and rate required", func(t *testing.T) {
		service, _, _ := setup()

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Weight: model.Num(1.0)})
		assert.ErrorIs(t, err, ErrWeightAndRate)
		assert.Equal(t, "Weight and rate are required", MessageOf(err, ""))
	})

	t.Run("negative weight", func(t *testing.T) {
		service, _, _ := setup()

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Weight: model.Num(-1.0), Rate: model.Num(1.0)})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("non-numeric weight", func(t *testing.T) {
		service, _, _ := setup()

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Weight: model.Num(math.NaN()), Rate: model.Num(1.0)})
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, "weight and rate must be numbers", MessageOf(err, ""))
	})

	t.Run("invalid unit", func(t *testing.T) {
		service, _, _ := setup()

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", WeightUnit: "ton", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("unknown customer", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		custRepo := new(MockCustomerRepository)
		service := newTransactionService(txnRepo, custRepo, nil)
		custRepo.On("FindByID", ctx, "ghost").Return(nil, repository.ErrCustomerNotFound)

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "ghost", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, "Customer not found", MessageOf(err, ""))
		txnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("publishes created event", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		custRepo := new(MockCustomerRepository)
		events := new(MockEventPublisher)
		service := newTransactionService(txnRepo, custRepo, events)
		custRepo.On("FindByID", ctx, "c1").Return(customer, nil)
		echoCreate(txnRepo)
		events.On("Publish", mock.Anything, mock.MatchedBy(func(e *model.LedgerEvent) bool {
			return e.Kind == model.EventTransactionCreated && e.EntityID == "t1"
		})).Return(nil)

		_, err := service.Create(ctx, model.TransactionCreateRequest{Customer: "c1", Weight: model.Num(1.0), Rate: model.Num(1.0)})
		require.NoError(t, err)
		events.AssertExpectations(t)
	})
}

func TestTransactionService_Update(t *testing.T) {
	ctx := context.Background()
	stored := &model.Transaction{
		ID:          "t1",
		Weight:      100,
		WeightUnit:  model.UnitKg,
		Rate:        200,
		RateUnit:    model.UnitKg,
		TotalAmount: 20000,
		Status:      model.TransactionStatusPending,
	}

	t.Run("unit change recomputes from stored values", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("FindByID", ctx, "t1").Return(stored, nil)
		txnRepo.On("Update", ctx, "t1", mock.MatchedBy(func(p model.TransactionPatch) bool {
			return p.WeightUnit != nil && *p.WeightUnit == model.UnitQuintal &&
				p.TotalAmount != nil && *p.TotalAmount == 2000000 &&
				p.Weight == nil && p.Rate == nil && p.RateUnit == nil
		})).Return(&model.Transaction{ID: "t1", TotalAmount: 2000000}, nil)

		updated, err := service.Update(ctx, "t1", model.TransactionUpdateRequest{WeightUnit: ptr("quintal")})
		require.NoError(t, err)
		assert.Equal(t, 2000000.0, updated.TotalAmount)
		txnRepo.AssertExpectations(t)
	})

	t.Run("recompute overrides supplied total", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("FindByID", ctx, "t1").Return(stored, nil)
		txnRepo.On("Update", ctx, "t1", mock.MatchedBy(func(p model.TransactionPatch) bool {
			return *p.TotalAmount == 1000
		})).Return(&model.Transaction{ID: "t1"}, nil)

		_, err := service.Update(ctx, "t1", model.TransactionUpdateRequest{Weight: model.Num(5.0), TotalAmount: model.Num(1.0)})
		require.NoError(t, err)
		txnRepo.AssertExpectations(t)
	})

	t.Run("notes only leaves total alone", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("FindByID", ctx, "t1").Return(stored, nil)
		txnRepo.On("Update", ctx, "t1", model.TransactionPatch{Notes: ptr("n")}).Return(&model.Transaction{ID: "t1"}, nil)

		_, err := service.Update(ctx, "t1", model.TransactionUpdateRequest{Notes: ptr("n")})
		require.NoError(t, err)
		txnRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("FindByID", ctx, "x").Return(nil, repository.ErrTransactionNotFound)

		_, err := service.Update(ctx, "x", model.TransactionUpdateRequest{Weight: model.Num(1.0)})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		service := newTransactionService(new(MockTransactionRepository), new(MockCustomerRepository), nil)

		_, err := service.Update(ctx, "t1", model.TransactionUpdateRequest{Status: ptr("lost")})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("non-numeric rate", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		_, err := service.Update(ctx, "t1", model.TransactionUpdateRequest{Rate: model.Num(math.NaN())})
		assert.Equal(t, "weight and rate must be numbers", MessageOf(err, ""))
		txnRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestTransactionService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("paid with payment date and notes", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		paidAt := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
		paid := model.TransactionStatusPaid
		txnRepo.On("Update", ctx, "t1", model.TransactionPatch{Status: &paid, PaymentDate: &paidAt, Notes: ptr("cash")}).
			Return(&model.Transaction{ID: "t1", Status: paid}, nil)

		updated, err := service.UpdateStatus(ctx, "t1", model.TransactionStatusRequest{Status: "paid", PaymentDate: ptr("2024-05-20"), Notes: ptr("cash")})
		require.NoError(t, err)
		assert.Equal(t, paid, updated.Status)
	})

	t.Run("empty notes are ignored", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		overdue := model.TransactionStatusOverdue
		txnRepo.On("Update", ctx, "t1", model.TransactionPatch{Status: &overdue}).Return(&model.Transaction{ID: "t1"}, nil)

		_, err := service.UpdateStatus(ctx, "t1", model.TransactionStatusRequest{Status: "overdue", Notes: ptr(""), PaymentDate: ptr("")})
		require.NoError(t, err)
		txnRepo.AssertExpectations(t)
	})

	t.Run("any status accepted, even from deleted", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		pending := model.TransactionStatusPending
		txnRepo.On("Update", ctx, "t1", model.TransactionPatch{Status: &pending}).Return(&model.Transaction{ID: "t1", Status: pending}, nil)

		_, err := service.UpdateStatus(ctx, "t1", model.TransactionStatusRequest{Status: "pending"})
		require.NoError(t, err)
	})

	t.Run("unknown status", func(t *testing.T) {
		service := newTransactionService(new(MockTransactionRepository), new(MockCustomerRepository), nil)

		_, err := service.UpdateStatus(ctx, "t1", model.TransactionStatusRequest{Status: "void"})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("bad payment date", func(t *testing.T) {
		service := newTransactionService(new(MockTransactionRepository), new(MockCustomerRepository), nil)

		_, err := service.UpdateStatus(ctx, "t1", model.TransactionStatusRequest{Status: "paid", PaymentDate: ptr("someday")})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("not found", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("Update", ctx, "x", mock.Anything).Return(nil, repository.ErrTransactionNotFound)

		_, err := service.UpdateStatus(ctx, "x", model.TransactionStatusRequest{Status: "paid"})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionService_SoftDelete(t *testing.T) {
	ctx := context.Background()
	txnRepo := new(MockTransactionRepository)
	events := new(MockEventPublisher)
	service := newTransactionService(txnRepo, new(MockCustomerRepository), events)

	deleted := model.TransactionStatusDeleted
	txnRepo.On("Update", ctx, "t1", model.TransactionPatch{Status: &deleted}).Return(&model.Transaction{ID: "t1", Status: deleted}, nil)
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e *model.LedgerEvent) bool {
		return e.Kind == model.EventTransactionDeleted && e.EntityID == "t1"
	})).Return(nil)

	txn, err := service.SoftDelete(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, deleted, txn.Status)
	events.AssertExpectations(t)
}

func TestTransactionService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("pagination metadata", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("List", ctx, model.TransactionFilter{Page: 1, Limit: 10}).Return(make([]*model.Transaction, 10), int64(25), nil)

		page, err := service.List(ctx, model.TransactionFilter{})
		require.NoError(t, err)
		assert.True(t, page.Pagination.HasNext)
		assert.False(t, page.Pagination.HasPrev)
		assert.Equal(t, 3, page.Pagination.TotalPages)
	})

	t.Run("repository failure", func(t *testing.T) {
		txnRepo := new(MockTransactionRepository)
		service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

		txnRepo.On("List", ctx, mock.Anything).Return(nil, int64(0), errors.New("boom"))

		_, err := service.List(ctx, model.TransactionFilter{})
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, "Server error while fetching transactions", MessageOf(err, ""))
	})

	t.Run("invalid status filter", func(t *testing.T) {
		service := newTransactionService(new(MockTransactionRepository), new(MockCustomerRepository), nil)

		_, err := service.List(ctx, model.TransactionFilter{Status: "archived"})
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestTransactionService_GetAndStats(t *testing.T) {
	ctx := context.Background()
	txnRepo := new(MockTransactionRepository)
	service := newTransactionService(txnRepo, new(MockCustomerRepository), nil)

	txnRepo.On("FindByID", ctx, "gone").Return(nil, repository.ErrTransactionNotFound)
	txnRepo.On("Stats", ctx, model.StatsFilter{IncludeDeleted: true}).Return(&model.TransactionStats{TotalStats: model.TotalStats{Count: 4}}, nil)

	_, err := service.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	stats, err := service.Stats(ctx, model.StatsFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalStats.Count)
}
