package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	pfirestore "github.com/panaven/api/internal/platform/firestore"
	"github.com/panaven/api/internal/repositories"
)

const (
	defaultSettingsCollection = "settings"
	exchangeRateDocumentID    = "exchangeRate"
)

// ExchangeRateRepository keeps the manual fallback rate in settings/exchangeRate.
type ExchangeRateRepository struct {
	settings *pfirestore.Collection[exchangeRateDocument]
	clock    func() time.Time
}

var _ repositories.ExchangeRateRepository = (*ExchangeRateRepository)(nil)

// NewExchangeRateRepository binds the repository to the settings collection.
func NewExchangeRateRepository(provider *pfirestore.Provider, collection string) (*ExchangeRateRepository, error) {
	if provider == nil {
		return nil, errors.New("exchange rate repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultSettingsCollection
	}
	return &ExchangeRateRepository{
		settings: pfirestore.NewCollection[exchangeRateDocument](provider, collection),
		clock:    time.Now,
	}, nil
}

func (r *ExchangeRateRepository) LatestManual(ctx context.Context) (domain.ExchangeRate, error) {
	doc, err := r.settings.Get(ctx, exchangeRateDocumentID)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	rate, err := decimal.NewFromString(doc.Data.Rate)
	if err != nil {
		return domain.ExchangeRate{}, pfirestore.WrapError("settings.exchangeRate", err)
	}
	return domain.ExchangeRate{Rate: rate, Source: doc.Data.Source, UpdatedAt: doc.Data.UpdatedAt}, nil
}

func (r *ExchangeRateRepository) SaveManual(ctx context.Context, rate decimal.Decimal, source string) (domain.ExchangeRate, error) {
	ref, err := r.settings.Doc(ctx, exchangeRateDocumentID)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	saved := domain.ExchangeRate{Rate: rate, Source: source, UpdatedAt: r.clock().UTC()}
	doc := exchangeRateDocument{Rate: rate.String(), Source: source, UpdatedAt: saved.UpdatedAt}
	if _, err := ref.Set(ctx, doc); err != nil {
		return domain.ExchangeRate{}, pfirestore.WrapError("settings.exchangeRate.set", err)
	}
	return saved, nil
}

type exchangeRateDocument struct {
	Rate      string    `firestore:"rate"`
	Source    string    `firestore:"source"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}
