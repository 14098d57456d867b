package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "panaven-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, StoreFirestore, cfg.Store.Backend)
	assert.Equal(t, "orders", cfg.Firestore.OrdersCollection)
	assert.Equal(t, "products", cfg.Firestore.ProductsCollection)
	assert.Equal(t, "panaven-dev", cfg.PubSub.ProjectID, "pubsub project falls back to firestore project")
	assert.Equal(t, "panaven-dev", cfg.Secrets.ProjectID)
	assert.Empty(t, cfg.PubSub.OrderEventsTopic)
	assert.Equal(t, defaultExchangePrimaryURL, cfg.Exchange.PrimaryURL)
	assert.Equal(t, defaultExchangeSecondary, cfg.Exchange.SecondaryURL)
	assert.Equal(t, "VES", cfg.Exchange.DisplayCurrency)
	assert.Equal(t, 10*time.Minute, cfg.Exchange.CacheTTL)
	assert.Equal(t, "local", cfg.Security.Environment)
	assert.Equal(t, "X-Admin-Secret", cfg.Security.AdminHeader)
	assert.False(t, cfg.Inventory.StrictDecrement)
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_WRITE_TIMEOUT":       "25s",
		"API_STORE_BACKEND":              "firestore",
		"API_FIRESTORE_PROJECT_ID":       "panaven-prod",
		"API_PUBSUB_PROJECT_ID":          "panaven-events",
		"API_PUBSUB_ORDER_EVENTS_TOPIC":  "order-events",
		"API_EXCHANGE_CACHE_TTL":         "1m",
		"API_EXCHANGE_DISPLAY_CURRENCY":  "ves",
		"API_SECURITY_ENVIRONMENT":       "PROD",
		"API_SECURITY_ADMIN_SECRET":      "sm://admin/shared",
		"API_INVENTORY_STRICT_DECREMENT": "yes",
	}

	var seen []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		seen = append(seen, ref)
		return " s3cret ", nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 25*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "panaven-events", cfg.PubSub.ProjectID)
	assert.Equal(t, "order-events", cfg.PubSub.OrderEventsTopic)
	assert.Equal(t, time.Minute, cfg.Exchange.CacheTTL)
	assert.Equal(t, "VES", cfg.Exchange.DisplayCurrency)
	assert.Equal(t, "prod", cfg.Security.Environment)
	assert.Equal(t, "s3cret", cfg.Security.AdminSecret)
	assert.True(t, cfg.Inventory.StrictDecrement)
	assert.Equal(t, []string{"secret://admin/shared"}, seen)
}

func TestLoadSecretResolverFailure(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":  "panaven-dev",
		"API_SECURITY_ADMIN_SECRET": "secret://admin/shared",
	}
	boom := errors.New("boom")
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(SecretResolverFunc(func(context.Context, string) (string, error) {
			return "", boom
		})))

	var secretErr *SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.Equal(t, "secret://admin/shared", secretErr.Ref)
	assert.ErrorIs(t, err, boom)
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND":        "postgres",
		"API_SECURITY_ENVIRONMENT": "prod",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"Store.Backend", "Security.AdminSecret"}, validation.Fields())
}

func TestLoadMemoryBackendNeedsNoProject(t *testing.T) {
	env := map[string]string{"API_STORE_BACKEND": "memory"}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestLoadReadsDotEnvBelowEnvMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_FIRESTORE_PROJECT_ID=from-file\nAPI_SERVER_PORT='7000'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "7100"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Firestore.ProjectID)
	assert.Equal(t, "7100", cfg.Server.Port)
}
