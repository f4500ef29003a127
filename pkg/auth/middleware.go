package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
)

const subjectKey = "auth.subject"

type Verifier interface {
	Verify(token string) (*jwt.RegisteredClaims, error)
}

// Middleware rejects requests without a valid bearer token with 401. Paths
// ending in one of the public suffixes pass through.
func Middleware(v Verifier, public ...string) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			path := string(ctx.Path())
			for _, p := range public {
				if strings.HasSuffix(path, p) {
					next(ctx)
					return
				}
			}

			token, err := BearerToken(string(ctx.Request.Header.Peek("Authorization")))
			if err != nil {
				unauthorized(ctx, "No token, authorization denied")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				logger.Debug("rejected bearer token", "path", path, "error", err)
				unauthorized(ctx, "Token is not valid")
				return
			}

			ctx.SetUserValue(subjectKey, claims.Subject)
			next(ctx)
		}
	}
}

// Subject returns the authenticated subject stored by Middleware.
func Subject(ctx *xhttp.RequestCtx) string {
	s, _ := ctx.UserValue(subjectKey).(string)
	return s
}

func unauthorized(ctx *xhttp.RequestCtx, msg string) {
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.SetStatusCode(xhttp.StatusUnauthorized)
	ctx.SetBodyString(`{"message":"` + msg + `"}`)
}
