package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panaven/api/internal/repositories"
	"github.com/panaven/api/internal/services"
)

func TestRouter_NotFoundEnvelope(t *testing.T) {
	res := serve(t, NewRouter(), http.MethodGet, "/api/v1/unknown", "")
	require.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "route_not_found", res.JSON(t)["error"])
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(WithExchangeRoutes(func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}))
	res := serve(t, router, http.MethodDelete, "/api/v1/exchange-rate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestRouter_AdminMiddlewareOnlyWrapsAdminGroup(t *testing.T) {
	var hits int
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			next.ServeHTTP(w, r)
		})
	}
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
	router := NewRouter(
		WithOrderRoutes(func(r chi.Router) { r.Get("/ping", ok) }),
		WithAdminRoutes(func(r chi.Router) { r.Get("/ping", ok) }, guard),
	)

	assert.Equal(t, http.StatusNoContent, serve(t, router, http.MethodGet, "/api/v1/orders/ping", "").Code)
	assert.Equal(t, 0, hits)
	assert.Equal(t, http.StatusNoContent, serve(t, router, http.MethodGet, "/api/v1/admin/ping", "").Code)
	assert.Equal(t, 1, hits)
}

func TestHealthHandlers(t *testing.T) {
	healthy := repositories.DependencyCheck{Name: "firestore", Check: func(context.Context) error { return nil }}
	res := serve(t, NewRouter(WithHealthHandlers(NewHealthHandlers(repositories.NewHealthProbe(healthy)))), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "ok", res.JSON(t)["status"])

	degraded := repositories.DependencyCheck{Name: "firestore", Check: func(context.Context) error { return errors.New("slow index") }}
	res = serve(t, NewRouter(WithHealthHandlers(NewHealthHandlers(repositories.NewHealthProbe(degraded)))), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "degraded", res.JSON(t)["status"])

	hanging := repositories.DependencyCheck{Name: "firestore", Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(repositories.NewHealthProbe(hanging))))
	res = serve(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	res = serve(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestExchangeHandlers_Current(t *testing.T) {
	updated := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	rates := &stubRateService{
		currentFn: func(context.Context) (services.ExchangeRate, error) {
			return services.ExchangeRate{Rate: decimal.RequireFromString("36.55"), Source: "BCV", UpdatedAt: updated}, nil
		},
	}
	router := NewRouter(WithExchangeRoutes(NewExchangeHandlers(rates, "ves").Routes))
	res := serve(t, router, http.MethodGet, "/api/v1/exchange-rate", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	body := res.JSON(t)
	assert.Equal(t, "USD", body["base"])
	assert.Equal(t, "VES", body["quote"])
	assert.Equal(t, "36.55", body["rate"])
	assert.Equal(t, "BCV", body["source"])
	assert.Equal(t, "2024-05-02T09:00:00Z", body["updated_at"])

	router = NewRouter(WithExchangeRoutes(NewExchangeHandlers(&stubRateService{}, "VES").Routes))
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, router, http.MethodGet, "/api/v1/exchange-rate", "").Code)
}
