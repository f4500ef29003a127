package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/poultry-ledger/internal/model"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
)

type CustomerService interface {
	List(ctx context.Context, f model.CustomerFilter) (*model.CustomerPage, error)
	Get(ctx context.Context, id string) (*model.CustomerDetail, error)
	Create(ctx context.Context, p model.CustomerCreateRequest) (*model.Customer, error)
	Update(ctx context.Context, id string, p model.CustomerUpdateRequest) (*model.Customer, error)
	SoftDelete(ctx context.Context, id string) (*model.Customer, error)
	Stats(ctx context.Context) (*model.CustomerStats, error)
}

type CustomerHandler struct {
	svc CustomerService
}

func RegisterCustomerRoutes(e *router.Group, h *CustomerHandler) {
	e.GET("/customers", h.ListCustomers)
	e.GET("/customers/stats", h.GetCustomerStats)
	e.GET("/customers/{id}", h.GetCustomer)
	e.POST("/customers", h.CreateCustomer)
	e.PUT("/customers/{id}", h.UpdateCustomer)
	e.DELETE("/customers/{id}", h.DeleteCustomer)
}

func NewCustomerHandler(svc CustomerService) *CustomerHandler {
	return &CustomerHandler{
		svc: svc,
	}
}

type customerPagination struct {
	model.Pagination
	TotalCustomers int64 `json:"totalCustomers"`
}

type customerListResponse struct {
	Customers  []*model.Customer  `json:"customers"`
	Pagination customerPagination `json:"pagination"`
}

type customerDetailResponse struct {
	Customer *model.CustomerDetail `json:"customer"`
}

type customerWriteResponse struct {
	Message  string          `json:"message"`
	Customer *model.Customer `json:"customer"`
}

func (h *CustomerHandler) ListCustomers(ctx *xhttp.RequestCtx) {
	f := model.CustomerFilter{
		Search: query(ctx, "search"),
		Status: query(ctx, "status"),
		Page:   queryInt(ctx, "page"),
		Limit:  queryInt(ctx, "limit"),
	}

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching customers")
		return
	}

	items := page.Items
	if items == nil {
		items = []*model.Customer{}
	}
	writeJSON(ctx, xhttp.StatusOK, customerListResponse{
		Customers: items,
		Pagination: customerPagination{
			Pagination:     page.Pagination,
			TotalCustomers: page.Pagination.TotalCount,
		},
	})
}

func (h *CustomerHandler) GetCustomer(ctx *xhttp.RequestCtx) {
	d, err := h.svc.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching customer")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, customerDetailResponse{Customer: d})
}

func (h *CustomerHandler) CreateCustomer(ctx *xhttp.RequestCtx) {
	var req model.CustomerCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	c, err := h.svc.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err, "Server error while creating customer")
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, customerWriteResponse{Message: "Customer created successfully", Customer: c})
}

func (h *CustomerHandler) UpdateCustomer(ctx *xhttp.RequestCtx) {
	var req model.CustomerUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	c, err := h.svc.Update(ctx, pathParam(ctx, "id"), req)
	if err != nil {
		writeServiceError(ctx, err, "Server error while updating customer")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, customerWriteResponse{Message: "Customer updated successfully", Customer: c})
}

func (h *CustomerHandler) DeleteCustomer(ctx *xhttp.RequestCtx) {
	c, err := h.svc.SoftDelete(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err, "Server error while deleting customer")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, customerWriteResponse{Message: "Customer deleted successfully", Customer: c})
}

func (h *CustomerHandler) GetCustomerStats(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		writeServiceError(ctx, err, "Server error while fetching customer statistics")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}
