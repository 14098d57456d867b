package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider names as stored in ExchangeRate.Source.
const (
	SourceOfficial = "BCV"
	SourceParallel = "Monitor"
	SourceManual   = "MANUAL"
)

const maxResponseBytes = 64 << 10

var errNonPositiveRate = errors.New("exchange: provider returned a non-positive rate")

// Quote is a single provider answer.
type Quote struct {
	Rate      decimal.Decimal
	UpdatedAt time.Time
}

// Provider fetches the current canonical→display rate from one source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Quote, error)
}

// DolarAPIProvider reads a DolarApi style endpoint returning {"promedio": n, "fechaActualizacion": t}.
type DolarAPIProvider struct {
	name   string
	url    string
	client *http.Client
}

// NewDolarAPIProvider builds a provider for url. A nil client uses http.DefaultClient.
func NewDolarAPIProvider(name, url string, client *http.Client) (*DolarAPIProvider, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("exchange: provider %s requires url", name)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DolarAPIProvider{name: name, url: url, client: client}, nil
}

func (p *DolarAPIProvider) Name() string { return p.name }

func (p *DolarAPIProvider) Fetch(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("exchange: %s request: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Quote{}, &StatusError{Provider: p.name, Code: resp.StatusCode}
	}

	var body struct {
		Average   json.Number `json:"promedio"`
		UpdatedAt string      `json:"fechaActualizacion"`
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("exchange: %s decode: %w", p.name, err)
	}
	rate, err := decimal.NewFromString(body.Average.String())
	if err != nil {
		return Quote{}, fmt.Errorf("exchange: %s rate %q: %w", p.name, body.Average, err)
	}
	if !rate.IsPositive() {
		return Quote{}, errNonPositiveRate
	}

	quote := Quote{Rate: rate}
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(body.UpdatedAt)); err == nil {
		quote.UpdatedAt = ts.UTC()
	}
	return quote, nil
}

// StatusError reports a non-200 provider response.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exchange: %s responded %d", e.Provider, e.Code)
}

// retryable reports whether another attempt against the same provider may succeed.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errNonPositiveRate) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= http.StatusInternalServerError
	}
	return true
}
