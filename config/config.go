package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Amadeus   AmadeusConfig   `yaml:"amadeus"`
	Directory DirectoryConfig `yaml:"directory"`
}

type ServerConfig struct {
	Address        string   `yaml:"address"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AmadeusConfig struct {
	Environment  string        `yaml:"environment"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxResults   int           `yaml:"max_results"`
	Currency     string        `yaml:"currency"`
	Adults       int           `yaml:"adults"`
}

// BaseURL picks the provider host for the configured environment.
func (a AmadeusConfig) BaseURL() string {
	if a.Environment == "production" {
		return "https://api.amadeus.com"
	}
	return "https://test.api.amadeus.com"
}

type DirectoryConfig struct {
	// Path is a .json or .csv file; empty means the embedded directory.
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Amadeus: AmadeusConfig{
			Environment: "test",
			Timeout:     10 * time.Second,
			MaxResults:  5,
			Currency:    "EUR",
			Adults:      1,
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		c.Server.GinMode = mode
	}
	if urls := os.Getenv("FRONTEND_URL"); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, u)
			}
		}
	}

	if env := os.Getenv("AMADEUS_ENV"); env != "" {
		c.Amadeus.Environment = env
	}
	if id := firstEnv("AMADEUS_CLIENT_ID", "AMADEUS_API_KEY"); id != "" {
		c.Amadeus.ClientID = id
	}
	if secret := firstEnv("AMADEUS_CLIENT_SECRET", "AMADEUS_API_SECRET"); secret != "" {
		c.Amadeus.ClientSecret = secret
	}

	if p := os.Getenv("AIRPORTS_FILE"); p != "" {
		c.Directory.Path = p
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Directory.DatabaseURL = dsn
	}
}

// Validate reports every problem that should stop the server from starting.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Amadeus.ClientID) == "" {
		errs = append(errs, errors.New("AMADEUS_CLIENT_ID is not set"))
	}
	if strings.TrimSpace(c.Amadeus.ClientSecret) == "" {
		errs = append(errs, errors.New("AMADEUS_CLIENT_SECRET is not set"))
	}
	switch c.Amadeus.Environment {
	case "test", "production":
	default:
		errs = append(errs, fmt.Errorf("unknown amadeus environment %q", c.Amadeus.Environment))
	}
	if c.Amadeus.Timeout <= 0 {
		errs = append(errs, errors.New("amadeus timeout must be positive"))
	}
	if c.Amadeus.MaxResults <= 0 {
		errs = append(errs, errors.New("amadeus max_results must be positive"))
	}
	if c.Amadeus.Adults <= 0 {
		errs = append(errs, errors.New("amadeus adults must be positive"))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one allowed origin is required"))
	}
	if len(c.Amadeus.Currency) != 3 {
		errs = append(errs, fmt.Errorf("invalid currency code %q", c.Amadeus.Currency))
	}

	return errors.Join(errs...)
}

// Redacted is the only view of the config that may be logged.
func (c *Config) Redacted() string {
	return fmt.Sprintf("address=%s env=%s credentials=%s timeout=%s max=%d currency=%s directory=%s",
		c.Server.Address,
		c.Amadeus.Environment,
		credentialState(c.Amadeus.ClientID, c.Amadeus.ClientSecret),
		c.Amadeus.Timeout,
		c.Amadeus.MaxResults,
		c.Amadeus.Currency,
		c.directorySource(),
	)
}

func (c *Config) directorySource() string {
	switch {
	case c.Directory.DatabaseURL != "":
		return "postgres"
	case c.Directory.Path != "":
		return c.Directory.Path
	default:
		return "embedded"
	}
}

func credentialState(id, secret string) string {
	if id != "" && secret != "" {
		return "set"
	}
	return "missing"
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
