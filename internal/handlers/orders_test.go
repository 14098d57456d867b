package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/services"
)

func newOrderRouter(orders services.OrderService, rates services.ExchangeRateService) http.Handler {
	h := NewOrderHandlers(orders, rates, services.NewCurrencyNormalizer(language.English))
	return NewRouter(WithOrderRoutes(h.Routes))
}

type httpResult struct {
	Code int
	Body string
}

func (r *httpResult) JSON(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.Body), &out), r.Body)
	return out
}

func newRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, nil)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func record(handler http.Handler, req *http.Request) *httpResult {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return &httpResult{Code: rec.Code, Body: rec.Body.String()}
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httpResult {
	t.Helper()
	return record(handler, newRequest(method, target, body))
}

func TestOrderHandlers_RequestQuote(t *testing.T) {
	var captured services.RequestQuoteCommand
	orders := &stubOrderService{
		quoteFn: func(_ context.Context, cmd services.RequestQuoteCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder(domain.OrderStatusQuoteRequested)
			order.Payments = nil
			return order, nil
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders",
		`{"customer_name":"Ana","client_phone":"0414","items":[{"product_id":"p1","quantity":2}]}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body)
	assert.Equal(t, "Ana", captured.CustomerName)
	require.Len(t, captured.Items, 1)
	assert.Equal(t, services.QuoteItem{ProductID: "p1", Quantity: 2}, captured.Items[0])

	order := rec.JSON(t)["order"].(map[string]any)
	assert.Equal(t, "QUOTE_REQUESTED", order["status"])
	totals := order["totals"].(map[string]any)
	assert.Equal(t, "USD", totals["currency"])
	assert.Equal(t, "85.00", totals["total_amount"])
	assert.Equal(t, "0.00", totals["total_paid"])
	assert.Equal(t, "85.00", totals["remaining_balance"])
	line := order["lines"].([]any)[0].(map[string]any)
	assert.Equal(t, "45.00", line["catalog_price"])
	assert.Equal(t, "42.50", line["effective_price"])
	assert.Equal(t, "85.00", line["subtotal"])
}

func TestOrderHandlers_RequestQuoteRejectsUnknownFields(t *testing.T) {
	rec := serve(t, newOrderRouter(&stubOrderService{}, nil), http.MethodPost, "/api/v1/orders", `{"price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlers_RequestQuoteMapsStockError(t *testing.T) {
	orders := &stubOrderService{
		quoteFn: func(context.Context, services.RequestQuoteCommand) (services.Order, error) {
			return services.Order{}, &services.InsufficientStockError{LineIndex: 0, ProductID: "p1", SKU: "FLT-1", Requested: 5, Available: 2}
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders", `{"items":[{"product_id":"p1","quantity":5}]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := rec.JSON(t)
	assert.Equal(t, "insufficient_stock", body["error"])
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(2), details["available"])
}

func TestOrderHandlers_GetOrderWithDisplayCurrency(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(_ context.Context, id string) (services.Order, error) {
			assert.Equal(t, "ord_1", id)
			return sampleOrder(domain.OrderStatusCreditActive), nil
		},
	}
	rates := &stubRateService{
		currentFn: func(context.Context) (services.ExchangeRate, error) {
			return services.ExchangeRate{Rate: decimal.RequireFromString("36.5"), Source: "BCV", UpdatedAt: time.Now()}, nil
		},
	}
	rec := serve(t, newOrderRouter(orders, rates), http.MethodGet, "/api/v1/orders/ord_1?currency=ves", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body)

	order := rec.JSON(t)["order"].(map[string]any)
	assert.Equal(t, "85.00", order["totals"].(map[string]any)["total_amount"])
	display := order["display"].(map[string]any)
	assert.Equal(t, "VES", display["currency"])
	assert.Equal(t, "BCV", display["rate_source"])
	assert.Equal(t, "VES 3,102.50", display["total_amount"])
	assert.Equal(t, "VES 1,095.00", display["total_paid"])
	assert.Equal(t, "VES 2,007.50", display["remaining_balance"])
}

func TestOrderHandlers_GetOrderCanonicalOnly(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return sampleOrder(domain.OrderStatusCreditActive), nil
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodGet, "/api/v1/orders/ord_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, hasDisplay := rec.JSON(t)["order"].(map[string]any)["display"]
	assert.False(t, hasDisplay)
}

func TestOrderHandlers_GetOrderRateUnavailable(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return sampleOrder(domain.OrderStatusCreditActive), nil
		},
	}
	rec := serve(t, newOrderRouter(orders, &stubRateService{}), http.MethodGet, "/api/v1/orders/ord_1?currency=VES", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOrderHandlers_GetOrderNotFound(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodGet, "/api/v1/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", rec.JSON(t)["error"])
}

func TestOrderHandlers_SubmitPayment(t *testing.T) {
	var captured services.TransitionRequest
	orders := &stubOrderService{
		transitionFn: func(_ context.Context, req services.TransitionRequest) (services.Order, error) {
			captured = req
			return sampleOrder(domain.OrderStatusPaid), nil
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders/ord_1:submit-payment",
		`{"payment_reference":"TRX-9","delivery_method":"PICKUP"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body)

	assert.Equal(t, "ord_1", captured.OrderID)
	assert.Equal(t, domain.OrderStatusApproved, captured.ExpectedStatus)
	cmd, ok := captured.Command.(services.SubmitPaymentEvidence)
	require.True(t, ok)
	assert.Equal(t, "TRX-9", cmd.PaymentReference)
	assert.Equal(t, domain.DeliveryPickup, cmd.Delivery)
}

func TestOrderHandlers_SubmitPaymentPreconditionFailed(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(context.Context, services.TransitionRequest) (services.Order, error) {
			return services.Order{}, services.ErrPreconditionFailed
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders/ord_1:submit-payment",
		`{"expected_status":"approved","payment_reference":"TRX-9","shipping_address":"Av. Bolivar"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "precondition_failed", rec.JSON(t)["error"])
}

func TestOrderHandlers_SubmitPaymentUnknownExpectedStatus(t *testing.T) {
	rec := serve(t, newOrderRouter(&stubOrderService{}, nil), http.MethodPost, "/api/v1/orders/ord_1:submit-payment",
		`{"expected_status":"LOST","payment_reference":"TRX-9"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlers_ConfirmReceipt(t *testing.T) {
	var captured services.TransitionRequest
	orders := &stubOrderService{
		transitionFn: func(_ context.Context, req services.TransitionRequest) (services.Order, error) {
			captured = req
			return sampleOrder(domain.OrderStatusCompleted), nil
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders/ord_1:confirm-receipt", `{"rating":5,"review":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusShipped, captured.ExpectedStatus)
	assert.Equal(t, services.ConfirmReceipt{Rating: 5, Review: "ok"}, captured.Command)
}

func TestOrderHandlers_ConfirmReceiptInvalidRating(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(context.Context, services.TransitionRequest) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidInput
		},
	}
	rec := serve(t, newOrderRouter(orders, nil), http.MethodPost, "/api/v1/orders/ord_1:confirm-receipt", `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
