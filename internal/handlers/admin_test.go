package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/auth"
	"github.com/panaven/api/internal/services"
)

const testAdminSecret = "s3cret"

func newAdminRouter(orders services.OrderService, rates services.ExchangeRateService) http.Handler {
	gate := auth.NewAdminGate(testAdminSecret)
	var opts []AdminOption
	if rates != nil {
		opts = append(opts, WithManualRates(rates, "VES"))
	}
	h := NewAdminHandlers(orders, opts...)
	return NewRouter(WithAdminRoutes(h.Routes, gate.Require))
}

func serveAdmin(t *testing.T, handler http.Handler, method, target, body string) *httpResult {
	t.Helper()
	req := newRequest(method, target, body)
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	req.Header.Set(auth.OperatorHeader, "maria")
	return record(handler, req)
}

func TestAdminHandlers_RequireSecret(t *testing.T) {
	handler := newAdminRouter(&stubOrderService{}, nil)
	res := record(handler, newRequest(http.MethodGet, "/api/v1/admin/orders", ""))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	req := newRequest(http.MethodGet, "/api/v1/admin/orders", "")
	req.Header.Set("X-Admin-Secret", "wrong")
	assert.Equal(t, http.StatusForbidden, record(handler, req).Code)
}

func TestAdminHandlers_ListOrdersFiltersStatus(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder(domain.OrderStatusCreditActive)}, NextPageToken: "next"}, nil
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodGet, "/api/v1/admin/orders?status=credit_active,shipped&pageSize=5", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	assert.Equal(t, []services.OrderStatus{domain.OrderStatusCreditActive, domain.OrderStatusShipped}, captured.Statuses)
	assert.Equal(t, 5, captured.Pagination.PageSize)
	body := res.JSON(t)
	assert.Equal(t, "next", body["next_page_token"])
	assert.Len(t, body["orders"], 1)
}

func TestAdminHandlers_ListOrdersRejectsUnknownStatus(t *testing.T) {
	res := serveAdmin(t, newAdminRouter(&stubOrderService{}, nil), http.MethodGet, "/api/v1/admin/orders?status=LOST", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAdminHandlers_CreateManualSale(t *testing.T) {
	var captured services.ManualSaleCommand
	orders := &stubOrderService{
		saleFn: func(_ context.Context, cmd services.ManualSaleCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(domain.OrderStatusCreditActive), nil
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders",
		`{"customer_name":"Taller Rivas","client_tax_id":"j-123","items":[{"product_id":"p1","quantity":2,"override_price":"42.50"},{"product_id":"p2","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)

	assert.Equal(t, "maria", captured.ActorID)
	require.Len(t, captured.Items, 2)
	require.NotNil(t, captured.Items[0].OverridePrice)
	assert.True(t, decimal.RequireFromString("42.5").Equal(*captured.Items[0].OverridePrice))
	assert.Nil(t, captured.Items[1].OverridePrice)
	_, hasWarnings := res.JSON(t)["stock_warnings"]
	assert.False(t, hasWarnings)
}

func TestAdminHandlers_CreateManualSalePartialDecrement(t *testing.T) {
	orders := &stubOrderService{
		saleFn: func(context.Context, services.ManualSaleCommand) (services.Order, error) {
			return sampleOrder(domain.OrderStatusCreditActive), &services.StockDecrementError{
				Failures: []services.StockDecrementFailure{{LineIndex: 1, ProductID: "p2", Quantity: 1, Err: errors.New("unavailable")}},
			}
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders",
		`{"customer_name":"Taller Rivas","client_tax_id":"J-123","items":[{"product_id":"p1","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)

	warnings := res.JSON(t)["stock_warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, "p2", warnings[0].(map[string]any)["product_id"])
}

func TestAdminHandlers_CreateManualSaleInsufficientStock(t *testing.T) {
	orders := &stubOrderService{
		saleFn: func(context.Context, services.ManualSaleCommand) (services.Order, error) {
			return services.Order{}, &services.InsufficientStockError{LineIndex: 0, ProductID: "p1", Requested: 3, Available: 1}
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders",
		`{"customer_name":"x","client_tax_id":"J-1","items":[{"product_id":"p1","quantity":3}]}`)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestAdminHandlers_Transitions(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		body     string
		expected services.OrderStatus
		command  services.TransitionCommand
	}{
		{name: "approve", target: "/api/v1/admin/orders/ord_1:approve", expected: domain.OrderStatusQuoteRequested, command: services.ApproveQuote{}},
		{name: "reject", target: "/api/v1/admin/orders/ord_1:reject", body: `{}`, expected: domain.OrderStatusQuoteRequested, command: services.RejectQuote{}},
		{name: "ship without expectation", target: "/api/v1/admin/orders/ord_1:ship", body: `{"shipping_receipt_ref":"MRW-1"}`, command: services.MarkShipped{ShippingReceiptRef: "MRW-1"}},
		{name: "ship from credit", target: "/api/v1/admin/orders/ord_1:ship", body: `{"expected_status":"CREDIT_ACTIVE"}`, expected: domain.OrderStatusCreditActive, command: services.MarkShipped{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured services.TransitionRequest
			orders := &stubOrderService{
				transitionFn: func(_ context.Context, req services.TransitionRequest) (services.Order, error) {
					captured = req
					return sampleOrder(domain.OrderStatusShipped), nil
				},
			}
			res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, tc.target, tc.body)
			require.Equal(t, http.StatusOK, res.Code, res.Body)
			assert.Equal(t, "ord_1", captured.OrderID)
			assert.Equal(t, tc.expected, captured.ExpectedStatus)
			assert.Equal(t, tc.command, captured.Command)
			assert.Equal(t, "maria", captured.ActorID)
		})
	}
}

func TestAdminHandlers_ApproveInvalidState(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(context.Context, services.TransitionRequest) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders/ord_1:approve", "")
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "order_invalid_state", res.JSON(t)["error"])
}

func TestAdminHandlers_EditLine(t *testing.T) {
	var captured services.TransitionRequest
	orders := &stubOrderService{
		transitionFn: func(_ context.Context, req services.TransitionRequest) (services.Order, error) {
			captured = req
			return sampleOrder(domain.OrderStatusQuoteRequested), nil
		},
	}
	handler := newAdminRouter(orders, nil)
	res := serveAdmin(t, handler, http.MethodPut, "/api/v1/admin/orders/ord_1/lines/p1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, services.EditLineQuantity{ProductID: "p1", Quantity: 0}, captured.Command)
	assert.Equal(t, domain.OrderStatusQuoteRequested, captured.ExpectedStatus)

	res = serveAdmin(t, handler, http.MethodPut, "/api/v1/admin/orders/ord_1/lines/p1", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestAdminHandlers_RecordPayment(t *testing.T) {
	var captured services.RecordPaymentCommand
	orders := &stubOrderService{
		paymentFn: func(_ context.Context, cmd services.RecordPaymentCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(domain.OrderStatusCreditActive), nil
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders/ord_1/payments",
		`{"amount":"55.00","reference":"TRX-2","note":"abono"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "ord_1", captured.OrderID)
	assert.True(t, decimal.NewFromInt(55).Equal(captured.Amount))
	assert.Equal(t, "TRX-2", captured.Reference)
	assert.Equal(t, "maria", captured.ActorID)
}

func TestAdminHandlers_RecordPaymentValidation(t *testing.T) {
	orders := &stubOrderService{
		paymentFn: func(context.Context, services.RecordPaymentCommand) (services.Order, error) {
			return services.Order{}, services.ErrInvalidAmount
		},
	}
	res := serveAdmin(t, newAdminRouter(orders, nil), http.MethodPost, "/api/v1/admin/orders/ord_1/payments", `{"amount":0,"reference":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, "invalid_amount", res.JSON(t)["error"])
}

func TestAdminHandlers_Reports(t *testing.T) {
	orders := &stubOrderService{
		debtFn: func(context.Context) ([]services.ClientDebt, error) {
			return []services.ClientDebt{{
				ClientKey: "J-123",
				TotalDebt: decimal.RequireFromString("55"),
				Orders:    []services.Order{sampleOrder(domain.OrderStatusCreditActive)},
			}}, nil
		},
		financeFn: func(context.Context) (services.FinanceSummary, error) {
			return services.FinanceSummary{Income: decimal.RequireFromString("30"), Receivables: decimal.RequireFromString("55")}, nil
		},
	}
	handler := newAdminRouter(orders, nil)

	res := serveAdmin(t, handler, http.MethodGet, "/api/v1/admin/debts", "")
	require.Equal(t, http.StatusOK, res.Code)
	debt := res.JSON(t)["debts"].([]any)[0].(map[string]any)
	assert.Equal(t, "J-123", debt["client_key"])
	assert.Equal(t, "55.00", debt["total_debt"])

	res = serveAdmin(t, handler, http.MethodGet, "/api/v1/admin/finances", "")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.JSON(t)
	assert.Equal(t, "30.00", body["income"])
	assert.Equal(t, "55.00", body["receivables"])
}

func TestAdminHandlers_SaveRate(t *testing.T) {
	var captured services.SaveManualRateCommand
	rates := &stubRateService{
		saveFn: func(_ context.Context, cmd services.SaveManualRateCommand) (services.ExchangeRate, error) {
			captured = cmd
			return services.ExchangeRate{Rate: cmd.Rate, Source: "MANUAL"}, nil
		},
	}
	res := serveAdmin(t, newAdminRouter(&stubOrderService{}, rates), http.MethodPut, "/api/v1/admin/exchange-rate", `{"rate":"36.55"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "maria", captured.ActorID)
	body := res.JSON(t)
	assert.Equal(t, "36.55", body["rate"])
	assert.Equal(t, "MANUAL", body["source"])
	assert.Equal(t, "VES", body["quote"])
}

func TestAdminHandlers_SaveRateDisabledWithoutService(t *testing.T) {
	res := serveAdmin(t, newAdminRouter(&stubOrderService{}, nil), http.MethodPut, "/api/v1/admin/exchange-rate", `{"rate":"36.55"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
