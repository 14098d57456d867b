package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/repositories"
	"github.com/panaven/api/internal/services"
)

const (
	defaultCacheTTL = 10 * time.Minute
	meterName       = "github.com/panaven/api/internal/exchange"
)

// ServiceDeps bundles collaborators for the rate chain.
type ServiceDeps struct {
	// Providers are tried in order; the manual rate is consulted only when all fail.
	Providers     []Provider
	Manual        repositories.ExchangeRateRepository
	CacheTTL      time.Duration
	RetryAttempts int
	Backoff       gax.Backoff
	Clock         func() time.Time
	Meter         metric.Meter
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type service struct {
	providers []Provider
	manual    repositories.ExchangeRateRepository
	ttl       time.Duration
	attempts  int
	backoff   gax.Backoff
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
	latency   metric.Float64Histogram

	mu        sync.Mutex
	cached    domain.ExchangeRate
	expiresAt time.Time
}

var _ services.ExchangeRateService = (*service)(nil)

// NewService builds the provider chain: each provider in order, then the stored manual rate.
func NewService(deps ServiceDeps) (services.ExchangeRateService, error) {
	if deps.Manual == nil {
		return nil, errors.New("exchange service: manual rate repository is required")
	}
	ttl := deps.CacheTTL
	if ttl < 0 {
		ttl = 0
	} else if ttl == 0 {
		ttl = defaultCacheTTL
	}
	attempts := deps.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := deps.Backoff
	if backoff.Initial == 0 {
		backoff = gax.Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	latency, err := meter.Float64Histogram("exchange.provider.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of exchange-rate provider calls"))
	if err != nil {
		return nil, fmt.Errorf("exchange service: register metric: %w", err)
	}

	return &service{
		providers: deps.Providers,
		manual:    deps.Manual,
		ttl:       ttl,
		attempts:  attempts,
		backoff:   backoff,
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
		latency:   latency,
	}, nil
}

// Current returns the cached rate while fresh, otherwise walks the chain.
func (s *service) Current(ctx context.Context) (domain.ExchangeRate, error) {
	now := s.clock()
	s.mu.Lock()
	if !s.expiresAt.IsZero() && now.Before(s.expiresAt) {
		rate := s.cached
		s.mu.Unlock()
		return rate, nil
	}
	s.mu.Unlock()

	for _, provider := range s.providers {
		quote, err := s.fetch(ctx, provider)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ExchangeRate{}, ctx.Err()
			}
			s.logger(ctx, "exchange.provider.failed", map[string]any{
				"provider": provider.Name(),
				"error":    err.Error(),
			})
			continue
		}
		updated := quote.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		return s.remember(domain.ExchangeRate{Rate: quote.Rate, Source: provider.Name(), UpdatedAt: updated}, now), nil
	}

	rate, err := s.manual.LatestManual(ctx)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.ExchangeRate{}, fmt.Errorf("%w: no provider answered and no manual rate is stored", services.ErrRateUnavailable)
		}
		return domain.ExchangeRate{}, fmt.Errorf("%w: %v", services.ErrRateUnavailable, err)
	}
	if !rate.Rate.IsPositive() {
		return domain.ExchangeRate{}, fmt.Errorf("%w: stored manual rate is not positive", services.ErrRateUnavailable)
	}
	return s.remember(rate, now), nil
}

// SaveManual stores the operator fallback rate and drops the cached value.
func (s *service) SaveManual(ctx context.Context, cmd services.SaveManualRateCommand) (domain.ExchangeRate, error) {
	if !cmd.Rate.IsPositive() {
		return domain.ExchangeRate{}, fmt.Errorf("%w: rate must be greater than zero", services.ErrInvalidAmount)
	}
	saved, err := s.manual.SaveManual(ctx, cmd.Rate, SourceManual)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("exchange: save manual rate: %w", err)
	}
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.logger(ctx, "exchange.manual.saved", map[string]any{
		"rate":  saved.Rate.String(),
		"actor": cmd.ActorID,
	})
	return saved, nil
}

func (s *service) remember(rate domain.ExchangeRate, now time.Time) domain.ExchangeRate {
	if s.ttl > 0 {
		s.mu.Lock()
		s.cached = rate
		s.expiresAt = now.Add(s.ttl)
		s.mu.Unlock()
	}
	return rate
}

// fetch calls provider up to s.attempts times, sleeping with exponential backoff between tries.
func (s *service) fetch(ctx context.Context, provider Provider) (Quote, error) {
	backoff := s.backoff
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		start := time.Now()
		quote, err := provider.Fetch(ctx)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), metric.WithAttributes(
			attribute.String("provider", provider.Name()),
			attribute.String("outcome", outcome),
		))
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if attempt == s.attempts || !retryable(err) {
			break
		}
		if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
			return Quote{}, err
		}
	}
	return Quote{}, lastErr
}
