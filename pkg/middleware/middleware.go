// Package middleware carries the request plumbing every handler relies
// on: database pool injection, request-scoped logging with panic
// recovery, and the tenant/principal headers.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/orgtree/pkg/composables"
	"github.com/iota-uz/orgtree/pkg/configuration"
)

const (
	tenantHeader       = "X-Tenant-Id"
	userHeader         = "X-User-Id"
	accessingOrgHeader = "X-Accessing-Org"
)

// WithPool attaches the database pool to every request context so
// repositories reach it through composables.
func WithPool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// WithTenant resolves the tenant from its header. Requests without a
// valid tenant are rejected before they reach any handler.
func WithTenant() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := uuid.Parse(r.Header.Get(tenantHeader))
			if err != nil {
				http.Error(w, "missing or invalid "+tenantHeader+" header", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
		})
	}
}

// WithPrincipal attaches the calling user and accessing organization
// when the headers are present. Authentication itself happens upstream;
// these headers only carry the already-verified identity.
func WithPrincipal() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID, err := uuid.Parse(r.Header.Get(userHeader)); err == nil {
				ctx = composables.WithUserID(ctx, userID)
			}
			if orgID, err := uuid.Parse(r.Header.Get(accessingOrgHeader)); err == nil {
				ctx = composables.WithAccessingOrg(ctx, orgID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestID(r *http.Request, conf *configuration.Configuration) string {
	if id := r.Header.Get(conf.RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
