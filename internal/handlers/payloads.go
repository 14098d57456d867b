package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/platform/pagination"
	"github.com/panaven/api/internal/services"
)

const maxBodySize = 32 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

type orderPayload struct {
	ID                 string                `json:"id"`
	Status             string                `json:"status"`
	CustomerName       string                `json:"customer_name"`
	ClientTaxID        string                `json:"client_tax_id,omitempty"`
	ClientBusinessName string                `json:"client_business_name,omitempty"`
	ClientPhone        string                `json:"client_phone,omitempty"`
	ShippingAddress    string                `json:"shipping_address,omitempty"`
	PaymentReference   string                `json:"payment_reference,omitempty"`
	PaymentProofRef    string                `json:"payment_proof_ref,omitempty"`
	ShippingReceiptRef string                `json:"shipping_receipt_ref,omitempty"`
	Rating             *int                  `json:"rating,omitempty"`
	Review             string                `json:"review,omitempty"`
	Lines              []orderLinePayload    `json:"lines"`
	Payments           []paymentPayload      `json:"payments"`
	Totals             totalsPayload         `json:"totals"`
	Display            *displayTotalsPayload `json:"display,omitempty"`
	CreatedAt          string                `json:"created_at"`
	UpdatedAt          string                `json:"updated_at,omitempty"`
}

type orderLinePayload struct {
	ProductID      string   `json:"product_id"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	SKU            string   `json:"sku"`
	Images         []string `json:"images,omitempty"`
	CatalogPrice   string   `json:"catalog_price"`
	EffectivePrice string   `json:"effective_price"`
	Quantity       int      `json:"quantity"`
	Subtotal       string   `json:"subtotal"`
}

type paymentPayload struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	Reference string `json:"reference"`
	Note      string `json:"note,omitempty"`
}

type totalsPayload struct {
	Currency         string `json:"currency"`
	TotalAmount      string `json:"total_amount"`
	TotalPaid        string `json:"total_paid"`
	RemainingBalance string `json:"remaining_balance"`
}

type displayTotalsPayload struct {
	Currency         string `json:"currency"`
	Rate             string `json:"rate"`
	RateSource       string `json:"rate_source"`
	TotalAmount      string `json:"total_amount"`
	TotalPaid        string `json:"total_paid"`
	RemainingBalance string `json:"remaining_balance"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	lines := make([]orderLinePayload, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = orderLinePayload{
			ProductID:      line.Product.ID,
			Brand:          line.Product.Brand,
			Model:          line.Product.Model,
			SKU:            line.Product.SKU,
			Images:         line.Product.Images,
			CatalogPrice:   money(line.Product.CatalogPrice),
			EffectivePrice: money(line.EffectivePrice),
			Quantity:       line.Quantity,
			Subtotal:       money(line.Subtotal()),
		}
	}
	payments := make([]paymentPayload, len(order.Payments))
	for i, p := range order.Payments {
		payments[i] = paymentPayload{
			ID:        p.ID,
			Amount:    money(p.Amount),
			Timestamp: formatTime(p.Timestamp),
			Reference: p.Reference,
			Note:      p.Note,
		}
	}
	totals := services.Totals(order)
	return orderPayload{
		ID:                 order.ID,
		Status:             string(order.Status),
		CustomerName:       order.CustomerName,
		ClientTaxID:        order.ClientTaxID,
		ClientBusinessName: order.ClientBusinessName,
		ClientPhone:        order.ClientPhone,
		ShippingAddress:    order.ShippingAddress,
		PaymentReference:   order.PaymentReference,
		PaymentProofRef:    order.PaymentProofRef,
		ShippingReceiptRef: order.ShippingReceiptRef,
		Rating:             order.Rating,
		Review:             order.Review,
		Lines:              lines,
		Payments:           payments,
		Totals: totalsPayload{
			Currency:         services.CanonicalCurrency,
			TotalAmount:      money(totals.TotalAmount),
			TotalPaid:        money(totals.TotalPaid),
			RemainingBalance: money(totals.RemainingBalance),
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(data) > maxBodySize {
		return errBodyTooLarge
	}
	if strings.TrimSpace(string(data)) == "" {
		return errEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func parseOrderStatus(raw string) (services.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case domain.OrderStatusQuoteRequested, domain.OrderStatusApproved, domain.OrderStatusPaid,
		domain.OrderStatusShipped, domain.OrderStatusCompleted, domain.OrderStatusCreditActive,
		domain.OrderStatusRejected:
		return status, true
	}
	return "", false
}

// expectedStatus returns the caller's expected_status or fallback when omitted.
func expectedStatus(raw string, fallback services.OrderStatus) (services.OrderStatus, bool) {
	if strings.TrimSpace(raw) == "" {
		return fallback, true
	}
	return parseOrderStatus(raw)
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var stockErr *services.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict).WithDetails(map[string]any{
			"line_index": stockErr.LineIndex,
			"product_id": stockErr.ProductID,
			"sku":        stockErr.SKU,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}))
	case errors.Is(err, services.ErrPreconditionFailed):
		httpx.WriteError(ctx, w, httpx.NewError("precondition_failed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_amount", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrMissingReference):
		httpx.WriteError(ctx, w, httpx.NewError("missing_reference", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrMissingRequiredField):
		httpx.WriteError(ctx, w, httpx.NewError("missing_required_field", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, pagination.ErrInvalidPageToken), errors.Is(err, pagination.ErrInvalidPageSize):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrRateUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("rate_unavailable", "exchange rate unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
