package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps map[string]Pinger
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler checks each named dependency on every request.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	// checks run on their own deadline, detached from the request
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: map[string]string{}}
	for name, dep := range h.deps {
		if err := dep.Ping(c); err != nil {
			logger.Warn("health check failed", "dependency", name, "error", err)
			res.Status = "degraded"
			res.Checks[name] = "down"
			continue
		}
		res.Checks[name] = "up"
	}

	status := xhttp.StatusOK
	if res.Status != "ok" {
		status = xhttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, res)
}
