// Package app assembles the HTTP API from its collaborators so the api
// binary and the end-to-end tests build the same engine.
package app

import (
	"time"

	"github.com/nimasrn/poultry-ledger/internal/handlers"
	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/repository"
	"github.com/nimasrn/poultry-ledger/internal/services"
	"github.com/nimasrn/poultry-ledger/pkg/auth"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
	"github.com/nimasrn/poultry-ledger/pkg/pg"
	"github.com/nimasrn/poultry-ledger/pkg/prom"
)

type APIOptions struct {
	BaseURI        string
	Server         xhttp.ServerOption
	Paging         model.Paging
	RequestTimeout time.Duration
	CORSOrigin     string

	// Verifier gates every route but /health. Nil disables authentication.
	Verifier auth.Verifier
	// Publisher receives ledger events. Nil disables notifications.
	Publisher services.EventPublisher
	// Checks are reported by the health endpoint next to the database.
	Checks map[string]handlers.Pinger
}

type API struct {
	*xhttp.Engine
	Customers    *services.CustomerService
	Transactions *services.TransactionService
	Migrations   *services.MigrationService
}

func NewAPI(db *pg.DB, o APIOptions) *API {
	if o.BaseURI == "" {
		o.BaseURI = "/api/v1"
	}
	if o.Paging.DefaultLimit == 0 {
		o.Paging = model.DefaultPaging()
	}
	if o.Server.Name == "" {
		o.Server = xhttp.DefaultServerOption
	}

	customerRepo := repository.NewCustomerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	summary := services.NewSummaryBuilder(transactionRepo)
	customers := services.NewCustomerService(customerRepo, transactionRepo, summary, o.Publisher).WithPaging(o.Paging)
	transactions := services.NewTransactionService(transactionRepo, customerRepo, o.Publisher).WithPaging(o.Paging)
	migrations := services.NewMigrationService(transactionRepo)

	checks := map[string]handlers.Pinger{"database": db}
	for name, p := range o.Checks {
		checks[name] = p
	}

	s := xhttp.NewServer(o.Server)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.CORSMiddleware(o.CORSOrigin))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(prom.Middleware)
	if o.RequestTimeout > 0 {
		s.Use(xhttp.TimeoutMiddleware(o.RequestTimeout))
	}
	if o.Verifier != nil {
		s.Use(auth.Middleware(o.Verifier, "/health"))
	}

	g := s.Router.Group(o.BaseURI)
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(checks))
	handlers.RegisterCustomerRoutes(g, handlers.NewCustomerHandler(customers))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactions, migrations))

	return &API{
		Engine:       s,
		Customers:    customers,
		Transactions: transactions,
		Migrations:   migrations,
	}
}
