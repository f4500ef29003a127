package handlers

import (
	"errors"
	"testing"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCustomerHandler_ListCustomers(t *testing.T) {
	t.Run("parses query and wraps pagination", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("List", mock.Anything, model.CustomerFilter{Search: "ra", Status: "active", Page: 3, Limit: 10}).
			Return(&model.CustomerPage{
				Items:      []*model.Customer{{ID: "c1", Name: "Ravi"}},
				Pagination: model.NewPagination(3, 10, 5, 25),
			}, nil)

		ctx := setupTestContext("GET", "/customers?search=ra&status=active&page=3&limit=10", nil)
		handler.ListCustomers(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Len(t, body["customers"], 1)
		p := body["pagination"].(map[string]any)
		assert.Equal(t, 3.0, p["currentPage"])
		assert.Equal(t, 25.0, p["totalCustomers"])
		assert.Equal(t, 25.0, p["totalCount"])
		assert.Equal(t, false, p["hasNext"])
		assert.Equal(t, true, p["hasPrev"])
		svc.AssertExpectations(t)
	})

	t.Run("malformed paging falls back to defaults", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("List", mock.Anything, model.CustomerFilter{}).Return(&model.CustomerPage{}, nil)

		ctx := setupTestContext("GET", "/customers?page=abc&limit=", nil)
		handler.ListCustomers(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, []any{}, decodeBody(t, ctx)["customers"])
	})

	t.Run("internal error hides detail", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("List", mock.Anything, mock.Anything).Return(nil, &services.Error{
			Kind:    services.KindInternal,
			Message: "Server error while fetching customers",
			Err:     errors.New("dial tcp: refused"),
		})

		ctx := setupTestContext("GET", "/customers", nil)
		handler.ListCustomers(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"message":"Server error while fetching customers"}`, string(ctx.Response.Body()))
	})
}

func TestCustomerHandler_GetCustomer(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("Get", mock.Anything, "c1").Return(&model.CustomerDetail{
			Customer:           &model.Customer{ID: "c1", Name: "A"},
			OutstandingBalance: 20000,
			LastTransaction:    &model.LastTransaction{Amount: 20000, Status: model.TransactionStatusPending},
		}, nil)

		ctx := withID(setupTestContext("GET", "/customers/c1", nil), "c1")
		handler.GetCustomer(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		c := decodeBody(t, ctx)["customer"].(map[string]any)
		assert.Equal(t, "c1", c["id"])
		assert.Equal(t, 20000.0, c["outstandingBalance"])
		assert.Equal(t, 0.0, c["totalPurchases"])
		assert.Equal(t, 20000.0, c["lastTransaction"].(map[string]any)["amount"])
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("Get", mock.Anything, "x").Return(nil, services.ErrCustomerNotFound)

		ctx := withID(setupTestContext("GET", "/customers/x", nil), "x")
		handler.GetCustomer(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"message":"Customer not found"}`, string(ctx.Response.Body()))
	})
}

func TestCustomerHandler_CreateCustomer(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.CustomerCreateRequest) bool {
			return p.Name == "A" && p.Phone == "1" && p.CreditLimit != nil && *p.CreditLimit == 100
		})).Return(&model.Customer{ID: "c1", Name: "A", Phone: "1", CreditLimit: 100, IsActive: true}, nil)

		ctx := setupTestContext("POST", "/customers", []byte(`{"name":"A","phone":"1","creditLimit":100}`))
		handler.CreateCustomer(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "Customer created successfully", body["message"])
		assert.Equal(t, "c1", body["customer"].(map[string]any)["id"])
	})

	t.Run("credit limit as string", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.CustomerCreateRequest) bool {
			return p.CreditLimit.Float() == 500
		})).Return(&model.Customer{ID: "c1", Name: "A", Phone: "1", CreditLimit: 500, IsActive: true}, nil)

		ctx := setupTestContext("POST", "/customers", []byte(`{"name":"A","phone":"1","creditLimit":"500"}`))
		handler.CreateCustomer(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("duplicate phone is 400", func(t *testing.T) {
		svc := new(MockCustomerService)
		handler := NewCustomerHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicatePhone)

		ctx := setupTestContext("POST", "/customers", []byte(`{"name":"A","phone":"1"}`))
		handler.CreateCustomer(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"message":"Customer with this phone number already exists"}`, string(ctx.Response.Body()))
	})

	t.Run("invalid json", func(t *testing.T) {
		handler := NewCustomerHandler(new(MockCustomerService))

		ctx := setupTestContext("POST", "/customers", []byte(`{`))
		handler.CreateCustomer(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCustomerHandler_UpdateAndDelete(t *testing.T) {
	svc := new(MockCustomerService)
	handler := NewCustomerHandler(svc)

	svc.On("Update", mock.Anything, "c1", mock.MatchedBy(func(p model.CustomerUpdateRequest) bool {
		return p.Name != nil && *p.Name == "B" && p.Phone == nil
	})).Return(&model.Customer{ID: "c1", Name: "B"}, nil)
	svc.On("SoftDelete", mock.Anything, "c1").Return(&model.Customer{ID: "c1", IsActive: false}, nil)

	ctx := withID(setupTestContext("PUT", "/customers/c1", []byte(`{"name":"B"}`)), "c1")
	handler.UpdateCustomer(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "Customer updated successfully", decodeBody(t, ctx)["message"])

	ctx = withID(setupTestContext("DELETE", "/customers/c1", nil), "c1")
	handler.DeleteCustomer(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	body := decodeBody(t, ctx)
	assert.Equal(t, "Customer deleted successfully", body["message"])
	assert.Equal(t, false, body["customer"].(map[string]any)["isActive"])
}

func TestCustomerHandler_GetCustomerStats(t *testing.T) {
	svc := new(MockCustomerService)
	handler := NewCustomerHandler(svc)

	svc.On("Stats", mock.Anything).Return(&model.CustomerStats{TotalCustomers: 4, ActiveCustomers: 4, InactiveCustomers: 1, OutstandingCustomers: 2}, nil)

	ctx := setupTestContext("GET", "/customers/stats", nil)
	handler.GetCustomerStats(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"totalCustomers":4,"activeCustomers":4,"inactiveCustomers":1,"outstandingCustomers":2}`, string(ctx.Response.Body()))
}
