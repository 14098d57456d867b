package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultStoreBackend        = StoreFirestore
	defaultOrdersCollection    = "orders"
	defaultProductsCollection  = "products"
	defaultSettingsCollection  = "settings"
	defaultExchangePrimaryURL  = "https://ve.dolarapi.com/v1/dolares/oficial"
	defaultExchangeSecondary   = "https://ve.dolarapi.com/v1/dolares/paralelo"
	defaultExchangeTimeout     = 5 * time.Second
	defaultExchangeCacheTTL    = 10 * time.Minute
	defaultExchangeAttempts    = 2
	defaultDisplayCurrency     = "VES"
	defaultDisplayLocale       = "es-VE"
	defaultSecurityEnvironment = "local"
	defaultAdminHeader         = "X-Admin-Secret"
	defaultSecretsFallbackFile = ".secrets.local"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Exchange  ExchangeConfig
	Security  SecurityConfig
	Inventory InventoryConfig
	Secrets   SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig selects the persistence backend. SeedFile preloads the memory catalog.
type StoreConfig struct {
	Backend  string
	SeedFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	OrdersCollection   string
	ProductsCollection string
	SettingsCollection string
}

// PubSubConfig names the topic receiving order events. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// ExchangeConfig configures the rate-provider chain and display formatting.
type ExchangeConfig struct {
	PrimaryURL      string
	SecondaryURL    string
	Timeout         time.Duration
	CacheTTL        time.Duration
	RetryAttempts   int
	DisplayCurrency string
	DisplayLocale   string
}

// SecurityConfig holds the operator shared secret.
type SecurityConfig struct {
	Environment string
	AdminSecret string
	AdminHeader string
}

// InventoryConfig controls the stock decrement protocol.
type InventoryConfig struct {
	StrictDecrement bool
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// Lookup returns a key lookup honouring dotenv < OS env < explicit env map. main uses it to read
// the secrets project before the secret resolver exists.
func Lookup(opts ...Option) (func(string) (string, bool), error) {
	options := newLoaderOptions(opts)
	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := Lookup(opts...)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(stringWithDefault(lookup, "API_STORE_BACKEND", defaultStoreBackend)),
			SeedFile: stringWithDefault(lookup, "API_STORE_SEED_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
			OrdersCollection:   stringWithDefault(lookup, "API_FIRESTORE_ORDERS_COLLECTION", defaultOrdersCollection),
			ProductsCollection: stringWithDefault(lookup, "API_FIRESTORE_PRODUCTS_COLLECTION", defaultProductsCollection),
			SettingsCollection: stringWithDefault(lookup, "API_FIRESTORE_SETTINGS_COLLECTION", defaultSettingsCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_EVENTS_TOPIC", ""),
		},
		Exchange: ExchangeConfig{
			PrimaryURL:      stringWithDefault(lookup, "API_EXCHANGE_PRIMARY_URL", defaultExchangePrimaryURL),
			SecondaryURL:    stringWithDefault(lookup, "API_EXCHANGE_SECONDARY_URL", defaultExchangeSecondary),
			Timeout:         durationWithDefault(lookup, "API_EXCHANGE_TIMEOUT", defaultExchangeTimeout),
			CacheTTL:        durationWithDefault(lookup, "API_EXCHANGE_CACHE_TTL", defaultExchangeCacheTTL),
			RetryAttempts:   intWithDefault(lookup, "API_EXCHANGE_RETRY_ATTEMPTS", defaultExchangeAttempts),
			DisplayCurrency: strings.ToUpper(stringWithDefault(lookup, "API_EXCHANGE_DISPLAY_CURRENCY", defaultDisplayCurrency)),
			DisplayLocale:   stringWithDefault(lookup, "API_EXCHANGE_DISPLAY_LOCALE", defaultDisplayLocale),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			AdminSecret: stringWithDefault(lookup, "API_SECURITY_ADMIN_SECRET", ""),
			AdminHeader: stringWithDefault(lookup, "API_SECURITY_ADMIN_HEADER", defaultAdminHeader),
		},
		Inventory: InventoryConfig{
			StrictDecrement: boolWithDefault(lookup, "API_INVENTORY_STRICT_DECREMENT", false),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "API_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "API_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		},
	}

	// Pub/Sub and Secret Manager default to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	resolved, err := resolveSecret(ctx, cfg.Security.AdminSecret, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Security.AdminSecret = strings.TrimSpace(resolved)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Store.Backend {
	case StoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case StoreMemory:
	default:
		missing = append(missing, "Store.Backend")
	}
	if cfg.Exchange.DisplayCurrency == "" {
		missing = append(missing, "Exchange.DisplayCurrency")
	}
	if cfg.Exchange.Timeout <= 0 {
		missing = append(missing, "Exchange.Timeout")
	}
	if cfg.Exchange.CacheTTL < 0 {
		missing = append(missing, "Exchange.CacheTTL")
	}
	if strings.TrimSpace(cfg.Security.AdminHeader) == "" {
		missing = append(missing, "Security.AdminHeader")
	}
	if cfg.Security.Environment != defaultSecurityEnvironment && cfg.Security.AdminSecret == "" {
		missing = append(missing, "Security.AdminSecret")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
