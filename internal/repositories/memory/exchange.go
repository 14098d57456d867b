package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/repositories"
)

// ExchangeRateRepository keeps the last manual rate.
type ExchangeRateRepository struct {
	mu    sync.Mutex
	rate  *domain.ExchangeRate
	clock func() time.Time
}

var _ repositories.ExchangeRateRepository = (*ExchangeRateRepository)(nil)

// NewExchangeRateRepository constructs an empty repository.
func NewExchangeRateRepository() *ExchangeRateRepository {
	return &ExchangeRateRepository{clock: time.Now}
}

func (r *ExchangeRateRepository) LatestManual(context.Context) (domain.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rate == nil {
		return domain.ExchangeRate{}, notFound("settings.get", "exchangeRate")
	}
	return *r.rate, nil
}

func (r *ExchangeRateRepository) SaveManual(_ context.Context, rate decimal.Decimal, source string) (domain.ExchangeRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := domain.ExchangeRate{Rate: rate, Source: source, UpdatedAt: r.clock().UTC()}
	r.rate = &saved
	return saved, nil
}
