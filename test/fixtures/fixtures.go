package fixtures

import (
	"fmt"

	"github.com/nimasrn/poultry-ledger/internal/model"
)

func Customer(name, phone string) model.CustomerCreateRequest {
	return model.CustomerCreateRequest{Name: name, Phone: phone, Address: "Main road"}
}

// Customers returns n customers with distinct phones.
func Customers(n int) []model.CustomerCreateRequest {
	out := make([]model.CustomerCreateRequest, n)
	for i := range out {
		out[i] = Customer(fmt.Sprintf("Farmer %02d", i+1), fmt.Sprintf("9000000%03d", i+1))
	}
	return out
}

// Give is a sale on credit in kg, outstanding until paid.
func Give(customerID string, weight, rate float64) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		Customer: customerID,
		Type:     string(model.TransactionTypeGive),
		Weight:   model.Num(weight),
		Rate:     model.Num(rate),
	}
}

func Receive(customerID string, weight, rate float64) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		Customer: customerID,
		Type:     string(model.TransactionTypeReceive),
		Weight:   model.Num(weight),
		Rate:     model.Num(rate),
	}
}

func WithDate(r model.TransactionCreateRequest, date string) model.TransactionCreateRequest {
	r.Date = date
	return r
}
