package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/services"
)

type ratePayload struct {
	Base      string `json:"base"`
	Quote     string `json:"quote,omitempty"`
	Rate      string `json:"rate"`
	Source    string `json:"source"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ExchangeHandlers publishes the current canonical→display rate.
type ExchangeHandlers struct {
	rates   services.ExchangeRateService
	display string
}

// NewExchangeHandlers serves rates quoted in displayCurrency.
func NewExchangeHandlers(rates services.ExchangeRateService, displayCurrency string) *ExchangeHandlers {
	return &ExchangeHandlers{rates: rates, display: strings.ToUpper(strings.TrimSpace(displayCurrency))}
}

// Routes registers GET /exchange-rate.
func (h *ExchangeHandlers) Routes(r chi.Router) {
	r.Get("/", h.current)
}

func (h *ExchangeHandlers) current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rate, err := h.rates.Current(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildRatePayload(rate, h.display))
}

func buildRatePayload(rate services.ExchangeRate, quote string) ratePayload {
	return ratePayload{
		Base:      services.CanonicalCurrency,
		Quote:     quote,
		Rate:      rate.Rate.String(),
		Source:    rate.Source,
		UpdatedAt: formatTime(rate.UpdatedAt),
	}
}
