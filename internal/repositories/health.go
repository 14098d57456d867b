package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/panaven/api/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck probes one backing service during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthProbe runs dependency checks concurrently.
type HealthProbe struct {
	checks []DependencyCheck
	now    func() time.Time
}

// NewHealthProbe copies checks; entries without a name or function are dropped.
func NewHealthProbe(checks ...DependencyCheck) *HealthProbe {
	kept := make([]DependencyCheck, 0, len(checks))
	for _, c := range checks {
		if c.Name != "" && c.Check != nil {
			kept = append(kept, c)
		}
	}
	return &HealthProbe{checks: kept, now: time.Now}
}

// Collect runs every check under its own timeout. A failed check degrades the report; a timeout or
// cancellation marks it as error.
func (p *HealthProbe) Collect(ctx context.Context) domain.HealthReport {
	results := make(map[string]domain.HealthCheck, len(p.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range p.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := check.Timeout
			if timeout <= 0 {
				timeout = defaultDependencyTimeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := p.now()
			err := check.Check(checkCtx)
			if err == nil {
				err = checkCtx.Err()
			}
			end := p.now()

			result := domain.HealthCheck{Status: domain.HealthStatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end.UTC()}
			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded):
				result.Status, result.Detail = domain.HealthStatusError, "timeout"
			case errors.Is(err, context.Canceled):
				result.Status, result.Detail = domain.HealthStatusError, "cancelled"
			default:
				result.Status, result.Detail = domain.HealthStatusDegraded, err.Error()
			}

			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, r := range results {
		if r.Status == domain.HealthStatusError {
			status = domain.HealthStatusError
			break
		}
		if r.Status == domain.HealthStatusDegraded {
			status = domain.HealthStatusDegraded
		}
	}
	return domain.HealthReport{Status: status, Checks: results, GeneratedAt: p.now().UTC()}
}
