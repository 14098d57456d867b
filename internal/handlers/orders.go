package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/services"
)

type quoteRequest struct {
	CustomerName string `json:"customer_name"`
	ClientPhone  string `json:"client_phone"`
	Items        []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type submitPaymentRequest struct {
	ExpectedStatus   string `json:"expected_status"`
	PaymentReference string `json:"payment_reference"`
	PaymentProofRef  string `json:"payment_proof_ref"`
	DeliveryMethod   string `json:"delivery_method"`
	ShippingAddress  string `json:"shipping_address"`
}

type confirmReceiptRequest struct {
	ExpectedStatus string `json:"expected_status"`
	Rating         int    `json:"rating"`
	Review         string `json:"review"`
}

// OrderHandlers exposes the customer side of the order lifecycle.
type OrderHandlers struct {
	orders     services.OrderService
	rates      services.ExchangeRateService
	normalizer services.CurrencyNormalizer
}

// NewOrderHandlers constructs the customer order endpoints. rates may be nil, which disables
// ?currency= display amounts.
func NewOrderHandlers(orders services.OrderService, rates services.ExchangeRateService, normalizer services.CurrencyNormalizer) *OrderHandlers {
	return &OrderHandlers{orders: orders, rates: rates, normalizer: normalizer}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Post("/", h.requestQuote)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:submit-payment", h.submitPayment)
	r.Post("/{orderID}:confirm-receipt", h.confirmReceipt)
}

func (h *OrderHandlers) requestQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req quoteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	cmd := services.RequestQuoteCommand{CustomerName: req.CustomerName, ClientPhone: req.ClientPhone}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.QuoteItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.RequestQuote(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := buildOrderPayload(order)

	if target := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency"))); target != "" && target != services.CanonicalCurrency {
		if h.rates == nil {
			writeOrderError(ctx, w, services.ErrRateUnavailable)
			return
		}
		rate, err := h.rates.Current(ctx)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		display, err := h.displayTotals(order, target, rate)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		payload.Display = &display
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: payload})
}

func (h *OrderHandlers) displayTotals(order services.Order, target string, rate services.ExchangeRate) (displayTotalsPayload, error) {
	totals := services.Totals(order)
	out := displayTotalsPayload{Currency: target, Rate: rate.Rate.String(), RateSource: rate.Source}
	var err error
	if out.TotalAmount, err = h.normalizer.Display(totals.TotalAmount, target, rate.Rate); err != nil {
		return displayTotalsPayload{}, err
	}
	if out.TotalPaid, err = h.normalizer.Display(totals.TotalPaid, target, rate.Rate); err != nil {
		return displayTotalsPayload{}, err
	}
	if out.RemainingBalance, err = h.normalizer.Display(totals.RemainingBalance, target, rate.Rate); err != nil {
		return displayTotalsPayload{}, err
	}
	return out, nil
}

func (h *OrderHandlers) submitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitPaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	expected, ok := expectedStatus(req.ExpectedStatus, domain.OrderStatusApproved)
	if !ok {
		writeOrderError(ctx, w, services.ErrOrderInvalidInput)
		return
	}
	h.transition(w, r, expected, services.SubmitPaymentEvidence{
		PaymentReference: req.PaymentReference,
		PaymentProofRef:  req.PaymentProofRef,
		Delivery:         domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(req.DeliveryMethod))),
		Address:          req.ShippingAddress,
	})
}

func (h *OrderHandlers) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req confirmReceiptRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	expected, ok := expectedStatus(req.ExpectedStatus, domain.OrderStatusShipped)
	if !ok {
		writeOrderError(ctx, w, services.ErrOrderInvalidInput)
		return
	}
	h.transition(w, r, expected, services.ConfirmReceipt{Rating: req.Rating, Review: req.Review})
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, expected services.OrderStatus, cmd services.TransitionCommand) {
	ctx := r.Context()
	order, err := h.orders.Transition(ctx, services.TransitionRequest{
		OrderID:        chi.URLParam(r, "orderID"),
		ExpectedStatus: expected,
		Command:        cmd,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
