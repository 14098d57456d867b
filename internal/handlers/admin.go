package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/platform/pagination"
	"github.com/panaven/api/internal/platform/requestctx"
	"github.com/panaven/api/internal/services"
)

type manualSaleRequest struct {
	CustomerName       string `json:"customer_name"`
	ClientTaxID        string `json:"client_tax_id"`
	ClientBusinessName string `json:"client_business_name"`
	ClientPhone        string `json:"client_phone"`
	Items              []struct {
		ProductID     string           `json:"product_id"`
		Quantity      int              `json:"quantity"`
		OverridePrice *decimal.Decimal `json:"override_price"`
	} `json:"items"`
}

type statusChangeRequest struct {
	ExpectedStatus     string `json:"expected_status"`
	ShippingReceiptRef string `json:"shipping_receipt_ref"`
}

type editLineRequest struct {
	ExpectedStatus string `json:"expected_status"`
	Quantity       *int   `json:"quantity"`
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Note      string          `json:"note"`
}

type saveRateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

type stockWarningPayload struct {
	LineIndex int    `json:"line_index"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

type manualSaleResponse struct {
	Order         orderPayload          `json:"order"`
	StockWarnings []stockWarningPayload `json:"stock_warnings,omitempty"`
}

type clientDebtPayload struct {
	ClientKey string         `json:"client_key"`
	TotalDebt string         `json:"total_debt"`
	Orders    []orderPayload `json:"orders"`
}

// AdminHandlers exposes the operator side: manual sales, quote review, ledger and reports.
type AdminHandlers struct {
	orders  services.OrderService
	rates   services.ExchangeRateService
	display string
}

// AdminOption customises AdminHandlers.
type AdminOption func(*AdminHandlers)

// WithManualRates enables PUT /exchange-rate, quoting saved rates in displayCurrency.
func WithManualRates(rates services.ExchangeRateService, displayCurrency string) AdminOption {
	return func(h *AdminHandlers) {
		h.rates = rates
		h.display = strings.ToUpper(strings.TrimSpace(displayCurrency))
	}
}

// NewAdminHandlers constructs the operator endpoints.
func NewAdminHandlers(orders services.OrderService, opts ...AdminOption) *AdminHandlers {
	h := &AdminHandlers{orders: orders}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createManualSale)
	r.Post("/orders/{orderID}:approve", h.approve)
	r.Post("/orders/{orderID}:reject", h.reject)
	r.Post("/orders/{orderID}:ship", h.ship)
	r.Put("/orders/{orderID}/lines/{productID}", h.editLine)
	r.Post("/orders/{orderID}/payments", h.recordPayment)
	r.Get("/debts", h.debts)
	r.Get("/finances", h.finances)
	if h.rates != nil {
		r.Put("/exchange-rate", h.saveRate)
	}
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	filter := services.OrderListFilter{
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := parseOrderStatus(part)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status "+strings.TrimSpace(part), http.StatusBadRequest))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	resp := orderListResponse{Orders: make([]orderPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AdminHandlers) createManualSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req manualSaleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	cmd := services.ManualSaleCommand{
		CustomerName:       req.CustomerName,
		ClientTaxID:        req.ClientTaxID,
		ClientBusinessName: req.ClientBusinessName,
		ClientPhone:        req.ClientPhone,
		ActorID:            requestctx.Actor(ctx),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.SaleItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			OverridePrice: item.OverridePrice,
		})
	}

	order, err := h.orders.CreateManualSale(ctx, cmd)
	var partial *services.StockDecrementError
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusCreated, manualSaleResponse{Order: buildOrderPayload(order)})
	case errors.As(err, &partial) && order.ID != "":
		resp := manualSaleResponse{Order: buildOrderPayload(order)}
		for _, f := range partial.Failures {
			resp.StockWarnings = append(resp.StockWarnings, stockWarningPayload{
				LineIndex: f.LineIndex,
				ProductID: f.ProductID,
				Quantity:  f.Quantity,
				Error:     f.Err.Error(),
			})
		}
		httpx.WriteJSON(w, http.StatusCreated, resp)
	default:
		writeOrderError(ctx, w, err)
	}
}

func (h *AdminHandlers) approve(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, domain.OrderStatusQuoteRequested, func(statusChangeRequest) services.TransitionCommand {
		return services.ApproveQuote{}
	})
}

func (h *AdminHandlers) reject(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, domain.OrderStatusQuoteRequested, func(statusChangeRequest) services.TransitionCommand {
		return services.RejectQuote{}
	})
}

// ship accepts PAID and CREDIT_ACTIVE orders, so the status check is skipped unless the caller
// names one.
func (h *AdminHandlers) ship(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, "", func(req statusChangeRequest) services.TransitionCommand {
		return services.MarkShipped{ShippingReceiptRef: req.ShippingReceiptRef}
	})
}

func (h *AdminHandlers) statusChange(w http.ResponseWriter, r *http.Request, fallback services.OrderStatus, build func(statusChangeRequest) services.TransitionCommand) {
	ctx := r.Context()
	var req statusChangeRequest
	if err := decodeJSONBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	expected, ok := expectedStatus(req.ExpectedStatus, fallback)
	if !ok {
		writeOrderError(ctx, w, services.ErrOrderInvalidInput)
		return
	}
	h.transition(w, r, expected, build(req))
}

func (h *AdminHandlers) editLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req editLineRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Quantity == nil {
		writeOrderError(ctx, w, services.ErrMissingRequiredField)
		return
	}
	expected, ok := expectedStatus(req.ExpectedStatus, domain.OrderStatusQuoteRequested)
	if !ok {
		writeOrderError(ctx, w, services.ErrOrderInvalidInput)
		return
	}
	h.transition(w, r, expected, services.EditLineQuantity{
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  *req.Quantity,
	})
}

func (h *AdminHandlers) transition(w http.ResponseWriter, r *http.Request, expected services.OrderStatus, cmd services.TransitionCommand) {
	ctx := r.Context()
	order, err := h.orders.Transition(ctx, services.TransitionRequest{
		OrderID:        chi.URLParam(r, "orderID"),
		ExpectedStatus: expected,
		Command:        cmd,
		ActorID:        requestctx.Actor(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req recordPaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	order, err := h.orders.RecordPayment(ctx, services.RecordPaymentCommand{
		OrderID:   chi.URLParam(r, "orderID"),
		Amount:    req.Amount,
		Reference: req.Reference,
		Note:      req.Note,
		ActorID:   requestctx.Actor(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) debts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	debts, err := h.orders.DebtReport(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := make([]clientDebtPayload, 0, len(debts))
	for _, debt := range debts {
		entry := clientDebtPayload{
			ClientKey: debt.ClientKey,
			TotalDebt: money(debt.TotalDebt),
			Orders:    make([]orderPayload, 0, len(debt.Orders)),
		}
		for _, order := range debt.Orders {
			entry.Orders = append(entry.Orders, buildOrderPayload(order))
		}
		payload = append(payload, entry)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"debts": payload})
}

func (h *AdminHandlers) finances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.orders.FinanceSummary(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"currency":    services.CanonicalCurrency,
		"income":      money(summary.Income),
		"receivables": money(summary.Receivables),
	})
}

func (h *AdminHandlers) saveRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req saveRateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	rate, err := h.rates.SaveManual(ctx, services.SaveManualRateCommand{Rate: req.Rate, ActorID: requestctx.Actor(ctx)})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildRatePayload(rate, h.display))
}
