package handlers

import (
	"context"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/nimasrn/poultry-ledger/internal/model"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
)

type TransactionService interface {
	List(ctx context.Context, f model.TransactionFilter) (*model.TransactionPage, error)
	Get(ctx context.Context, id string) (*model.Transaction, error)
	Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error)
	Update(ctx context.Context, id string, p model.TransactionUpdateRequest) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, id string, p model.TransactionStatusRequest) (*model.Transaction, error)
	SoftDelete(ctx context.Context, id string) (*model.Transaction, error)
	Stats(ctx context.Context, f model.StatsFilter) (*model.TransactionStats, error)
}

type TypeBackfiller interface {
	BackfillType(ctx context.Context) (*model.BackfillResult, error)
}

type TransactionHandler struct {
	svc        TransactionService
	backfiller TypeBackfiller
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/stats", h.GetTransactionStats)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.POST("/transactions", h.CreateTransaction)
	e.POST("/transactions/update-existing", h.BackfillTypes)
	e.PUT("/transactions/{id}", h.UpdateTransaction)
	e.PATCH("/transactions/{id}/status", h.UpdateTransactionStatus)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
}

func NewTransactionHandler(svc TransactionService, backfiller TypeBackfiller) *TransactionHandler {
	return &TransactionHandler{
		svc:        svc,
		backfiller: backfiller,
	}
}

type transactionPagination struct {
	model.Pagination
	TotalTransactions int64 `json:"totalTransactions"`
}

type transactionListResponse struct {
	Transactions []*model.Transaction  `json:"transactions"`
	Pagination   transactionPagination `json:"pagination"`
}

type transactionResponse struct {
	Transaction *model.Transaction `json:"transaction"`
}

type transactionWriteResponse struct {
	Message     string             `json:"message"`
	Transaction *model.Transaction `json:"transaction"`
}

type backfillResponse struct {
	Message string `json:"message"`
	*model.BackfillResult
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	f := model.TransactionFilter{
		CustomerID:     query(ctx, "customer"),
		Status:         model.TransactionStatus(query(ctx, "status")),
		IncludeDeleted: query(ctx, "includeDeleted") == "true",
		Page:           queryInt(ctx, "page"),
		Limit:          queryInt(ctx, "limit"),
	}
	var err error
	if f.StartDate, err = queryDate(ctx, "startDate"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid date format")
		return
	}
	if f.EndDate, err = queryDate(ctx, "endDate"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid date format")
		return
	}

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching transactions")
		return
	}

	items := page.Items
	if items == nil {
		items = []*model.Transaction{}
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{
		Transactions: items,
		Pagination: transactionPagination{
			Pagination:        page.Pagination,
			TotalTransactions: page.Pagination.TotalCount,
		},
	})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	txn, err := h.svc.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching transaction")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionResponse{Transaction: txn})
}

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var req model.TransactionCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	txn, err := h.svc.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err, "Server error while creating transaction")
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, transactionWriteResponse{Message: "Transaction created successfully", Transaction: txn})
}

func (h *TransactionHandler) UpdateTransaction(ctx *xhttp.RequestCtx) {
	var req model.TransactionUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	txn, err := h.svc.Update(ctx, pathParam(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err, "Server error while updating transaction")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionWriteResponse{Message: "Transaction updated successfully", Transaction: txn})
}

func (h *TransactionHandler) UpdateTransactionStatus(ctx *xhttp.RequestCtx) {
	var req model.TransactionStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	txn, err := h.svc.UpdateStatus(ctx, pathParam(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err, "Server error while updating transaction status")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionWriteResponse{Message: "Transaction status updated successfully", Transaction: txn})
}

func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	txn, err := h.svc.SoftDelete(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err, "Server error while marking transaction as deleted")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionWriteResponse{Message: "Transaction marked as deleted successfully", Transaction: txn})
}

func (h *TransactionHandler) GetTransactionStats(ctx *xhttp.RequestCtx) {
	f := model.StatsFilter{IncludeDeleted: query(ctx, "includeDeleted") == "true"}
	var err error
	if f.StartDate, err = queryDate(ctx, "startDate"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid date format")
		return
	}
	if f.EndDate, err = queryDate(ctx, "endDate"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid date format")
		return
	}

	stats, err := h.svc.Stats(ctx, f)
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching transaction statistics")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}

func (h *TransactionHandler) BackfillTypes(ctx *xhttp.RequestCtx) {
	res, err := h.backfiller.BackfillType(ctx)
	if err != nil {
		writeServiceError(ctx, err, "Server error while updating existing transactions")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, backfillResponse{
		Message:        fmt.Sprintf("Updated %d transactions with appropriate type based on status", res.Modified),
		BackfillResult: res,
	})
}
