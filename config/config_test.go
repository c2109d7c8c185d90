package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "GIN_MODE", "FRONTEND_URL", "AMADEUS_ENV",
		"AMADEUS_CLIENT_ID", "AMADEUS_API_KEY", "AMADEUS_CLIENT_SECRET", "AMADEUS_API_SECRET",
		"AIRPORTS_FILE", "DATABASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "test", cfg.Amadeus.Environment)
	assert.Equal(t, 10*time.Second, cfg.Amadeus.Timeout)
	assert.Equal(t, 5, cfg.Amadeus.MaxResults)
	assert.Equal(t, "EUR", cfg.Amadeus.Currency)
	assert.Equal(t, 1, cfg.Amadeus.Adults)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
amadeus:
  environment: production
  timeout: 3s
  max_results: 8
  currency: USD
directory:
  path: ./airports.csv
`), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("AMADEUS_API_KEY", "key-alias")
	t.Setenv("AMADEUS_CLIENT_SECRET", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "production", cfg.Amadeus.Environment)
	assert.Equal(t, "https://api.amadeus.com", cfg.Amadeus.BaseURL())
	assert.Equal(t, 3*time.Second, cfg.Amadeus.Timeout)
	assert.Equal(t, 8, cfg.Amadeus.MaxResults)
	assert.Equal(t, "USD", cfg.Amadeus.Currency)
	assert.Equal(t, "key-alias", cfg.Amadeus.ClientID)
	assert.Equal(t, "secret", cfg.Amadeus.ClientSecret)
	assert.Equal(t, "./airports.csv", cfg.Directory.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amadeus: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMADEUS_CLIENT_ID")
	assert.Contains(t, err.Error(), "AMADEUS_CLIENT_SECRET")
}

func TestRedacted_NeverContainsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Amadeus.ClientID = "my-client-id-1234"
	cfg.Amadeus.ClientSecret = "my-secret-5678"

	out := cfg.Redacted()
	assert.NotContains(t, out, "1234")
	assert.NotContains(t, out, "5678")
	assert.Contains(t, out, "credentials=set")
}

func TestValidate_Valid(t *testing.T) {
	cfg := Default()
	cfg.Amadeus.ClientID = "id"
	cfg.Amadeus.ClientSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Server.AllowedOrigins = nil
	cfg.Amadeus.Environment = "staging"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed origin")
	assert.Contains(t, err.Error(), `"staging"`)
}
