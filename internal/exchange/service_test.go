package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panaven/api/internal/repositories/memory"
	"github.com/panaven/api/internal/services"
)

type fakeEndpoint struct {
	hits   atomic.Int32
	status int
	body   string
}

func newEndpoint(t *testing.T, status int, body string) (*fakeEndpoint, *httptest.Server) {
	t.Helper()
	ep := &fakeEndpoint{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ep.status)
		fmt.Fprint(w, ep.body)
	}))
	t.Cleanup(srv.Close)
	return ep, srv
}

func quoteBody(rate string) string {
	return fmt.Sprintf(`{"fuente":"oficial","nombre":"Oficial","promedio":%s,"fechaActualizacion":"2025-03-01T13:00:00.000Z"}`, rate)
}

type chainFixture struct {
	primary   *fakeEndpoint
	secondary *fakeEndpoint
	manual    *memory.ExchangeRateRepository
	now       time.Time
	svc       services.ExchangeRateService
}

func newChain(t *testing.T, primaryStatus int, primaryBody string, secondaryStatus int, secondaryBody string) *chainFixture {
	t.Helper()
	f := &chainFixture{now: time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)}
	var primarySrv, secondarySrv *httptest.Server
	f.primary, primarySrv = newEndpoint(t, primaryStatus, primaryBody)
	f.secondary, secondarySrv = newEndpoint(t, secondaryStatus, secondaryBody)

	primary, err := NewDolarAPIProvider(SourceOfficial, primarySrv.URL, primarySrv.Client())
	require.NoError(t, err)
	secondary, err := NewDolarAPIProvider(SourceParallel, secondarySrv.URL, secondarySrv.Client())
	require.NoError(t, err)

	f.manual = memory.NewExchangeRateRepository()
	f.svc, err = NewService(ServiceDeps{
		Providers:     []Provider{primary, secondary},
		Manual:        f.manual,
		CacheTTL:      time.Minute,
		RetryAttempts: 2,
		Backoff:       gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1},
		Clock:         func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

func TestCurrentUsesPrimaryAndCaches(t *testing.T) {
	f := newChain(t, http.StatusOK, quoteBody("36.55"), http.StatusOK, quoteBody("40"))
	ctx := context.Background()

	rate, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceOfficial, rate.Source)
	assert.True(t, decimal.RequireFromString("36.55").Equal(rate.Rate))
	assert.Equal(t, time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC), rate.UpdatedAt)

	_, err = f.svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.primary.hits.Load())

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.primary.hits.Load())
	assert.EqualValues(t, 0, f.secondary.hits.Load())
}

func TestCurrentRetriesThenFallsBackToSecondary(t *testing.T) {
	f := newChain(t, http.StatusBadGateway, `{}`, http.StatusOK, quoteBody("41.2"))

	rate, err := f.svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceParallel, rate.Source)
	assert.EqualValues(t, 2, f.primary.hits.Load())
	assert.EqualValues(t, 1, f.secondary.hits.Load())
}

func TestCurrentDoesNotRetryNonPositiveRate(t *testing.T) {
	f := newChain(t, http.StatusOK, quoteBody("0"), http.StatusOK, quoteBody("41.2"))

	rate, err := f.svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceParallel, rate.Source)
	assert.EqualValues(t, 1, f.primary.hits.Load())
}

func TestCurrentFallsBackToManualRate(t *testing.T) {
	f := newChain(t, http.StatusNotFound, `{}`, http.StatusOK, `not json`)
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.ErrorIs(t, err, services.ErrRateUnavailable)

	saved, err := f.svc.SaveManual(ctx, services.SaveManualRateCommand{Rate: decimal.RequireFromString("38"), ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, SourceManual, saved.Source)

	rate, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, rate.Source)
	assert.True(t, decimal.NewFromInt(38).Equal(rate.Rate))
}

func TestSaveManualRejectsNonPositiveRate(t *testing.T) {
	f := newChain(t, http.StatusOK, quoteBody("36"), http.StatusOK, quoteBody("40"))

	_, err := f.svc.SaveManual(context.Background(), services.SaveManualRateCommand{Rate: decimal.Zero})
	require.ErrorIs(t, err, services.ErrInvalidAmount)
}

func TestSaveManualDropsCachedRate(t *testing.T) {
	f := newChain(t, http.StatusOK, quoteBody("36"), http.StatusOK, quoteBody("40"))
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.NoError(t, err)
	_, err = f.svc.SaveManual(ctx, services.SaveManualRateCommand{Rate: decimal.NewFromInt(50)})
	require.NoError(t, err)
	_, err = f.svc.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.primary.hits.Load())
}

func TestNewServiceRequiresManualRepository(t *testing.T) {
	_, err := NewService(ServiceDeps{})
	require.Error(t, err)
}

func TestNewDolarAPIProviderRequiresURL(t *testing.T) {
	_, err := NewDolarAPIProvider(SourceOfficial, " ", nil)
	require.Error(t, err)
}
