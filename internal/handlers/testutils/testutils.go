// Package testutils holds helpers shared by handler tests.
package testutils

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cutmarket/backend/internal/middleware"
)

// WithChiURLParams attaches chi route parameters to req.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// AsPrincipal authenticates req as userID with role.
func AsPrincipal(req *http.Request, userID uuid.UUID, role string) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{UserID: userID, Role: role}))
}
