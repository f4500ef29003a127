package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/internal/services"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
)

type messageResponse struct {
	Message string `json:"message"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, "Internal server error")
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	b, _ := json.Marshal(messageResponse{Message: msg})
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

// writeServiceError maps the service error kind onto a status code. Internal
// errors only expose fallback.
func writeServiceError(ctx *xhttp.RequestCtx, err error, fallback string) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		writeError(ctx, xhttp.StatusNotFound, services.MessageOf(err, fallback))
	case services.KindValidation, services.KindConflict:
		writeError(ctx, xhttp.StatusBadRequest, services.MessageOf(err, fallback))
	default:
		writeError(ctx, xhttp.StatusInternalServerError, services.MessageOf(err, fallback))
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// queryInt returns 0 for missing or malformed values so that defaults apply.
func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, err := strconv.Atoi(query(ctx, key))
	if err != nil {
		return 0
	}
	return n
}

func queryDate(ctx *xhttp.RequestCtx, key string) (*time.Time, error) {
	v := query(ctx, key)
	if v == "" {
		return nil, nil
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
