package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/platform/observability"
	"github.com/panaven/api/internal/platform/requestctx"
)

const (
	defaultSecretHeader = "X-Admin-Secret"
	// OperatorHeader optionally names the operator acting behind the shared secret.
	OperatorHeader  = "X-Operator"
	defaultOperator = "admin"
)

// AdminGate protects operator routes with a single shared secret.
type AdminGate struct {
	digest   [sha256.Size]byte
	enabled  bool
	header   string
	logger   *zap.Logger
	failures metric.Int64Counter
}

// GateOption customises AdminGate.
type GateOption func(*AdminGate)

// WithHeader overrides the header carrying the shared secret.
func WithHeader(name string) GateOption {
	return func(g *AdminGate) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithLogger sets the fallback logger used when the request carries none.
func WithLogger(logger *zap.Logger) GateOption {
	return func(g *AdminGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMeter overrides the meter recording rejected requests.
func WithMeter(meter metric.Meter) GateOption {
	return func(g *AdminGate) {
		if counter, err := meter.Int64Counter("admin.gate.rejections",
			metric.WithDescription("Operator requests rejected by the shared secret gate")); err == nil {
			g.failures = counter
		}
	}
}

// NewAdminGate builds a gate for secret. An empty secret rejects every request with 503; local
// development should configure one in .env.
func NewAdminGate(secret string, opts ...GateOption) *AdminGate {
	g := &AdminGate{header: defaultSecretHeader, logger: zap.NewNop()}
	if secret = strings.TrimSpace(secret); secret != "" {
		g.digest = sha256.Sum256([]byte(secret))
		g.enabled = true
	}
	WithMeter(otel.GetMeterProvider().Meter("github.com/panaven/api/internal/platform/auth"))(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require returns middleware that admits requests presenting the shared secret and records the
// operator name on the context.
func (g *AdminGate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !g.enabled {
			g.reject(ctx, "not_configured")
			httpx.WriteError(ctx, w, httpx.NewError("admin_unavailable", "operator access is not configured", http.StatusServiceUnavailable))
			return
		}
		presented := strings.TrimSpace(r.Header.Get(g.header))
		if presented == "" {
			g.reject(ctx, "missing")
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "admin secret required", http.StatusUnauthorized))
			return
		}
		digest := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(digest[:], g.digest[:]) != 1 {
			g.reject(ctx, "mismatch")
			httpx.WriteError(ctx, w, httpx.NewError("permission_denied", "admin secret rejected", http.StatusForbidden))
			return
		}

		operator := observability.SanitizeActor(strings.TrimSpace(r.Header.Get(OperatorHeader)))
		if operator == "" {
			operator = defaultOperator
		}
		observability.RecordActor(w, operator)
		next.ServeHTTP(w, r.WithContext(requestctx.WithActor(ctx, operator)))
	})
}

func (g *AdminGate) reject(ctx context.Context, reason string) {
	logger := requestctx.Logger(ctx)
	if logger == requestctx.NoopLogger() {
		logger = g.logger
	}
	logger.Warn("admin gate rejected request", zap.String("reason", reason))
	if g.failures != nil {
		g.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
