package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Netflix/go-env"
	"github.com/information-sharing-networks/userportal/internal/environment"
)

// Config is shared by the ui server, the cli commands and the mock api.
type Config struct {
	AppEnv     string `env:"APP_ENV,default=development"`
	APIURL     string `env:"API_URL"`
	ProdAPIURL string `env:"PROD_API_URL"`
	LogLevel   string `env:"LOG_LEVEL,default=debug"`

	// ui server
	Host                string        `env:"HOST,default=0.0.0.0"`
	Port                int           `env:"PORT,default=3000"`
	ReadTimeout         time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout        time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout         time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME,default=userportal_session"`
	LoginRateLimitRPS   int32         `env:"LOGIN_RATE_LIMIT_RPS,default=5"`
	LoginRateLimitBurst int32         `env:"LOGIN_RATE_LIMIT_BURST,default=10"`

	// session storage
	SessionStore string `env:"SESSION_STORE"` // defaults depend on the command, see NewConfig
	SessionFile  string `env:"SESSION_FILE"`
	RedisURL     string `env:"REDIS_URL,default=redis://localhost:6379/0"`

	// mock api
	MockAPIPort   int    `env:"MOCK_API_PORT,default=8080"`
	MockAPISecret string `env:"MOCK_API_SECRET,default=dev-secret"` // see DefaultMockAPISecret
}

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"

	// DefaultMockAPISecret is the MOCK_API_SECRET default, refused by the mock api in production
	DefaultMockAPISecret = "dev-secret"

	// ServerShutdownTimeout is the timeout for graceful server shutdown
	ServerShutdownTimeout = 10 * time.Second
)

var validEnvs = map[string]bool{
	"development": true,
	"test":        true,
	"staging":     true,
	"production":  true,
}

var validStores = map[string]bool{
	StoreMemory: true,
	StoreFile:   true,
	StoreRedis:  true,
}

// NewConfig loads the configuration from the environment.
// defaultStore is used when SESSION_STORE is not set: the ui server keeps sessions in memory, the cli persists them to a file.
func NewConfig(defaultStore string) (*Config, error) {
	var cfg Config

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if cfg.SessionStore == "" {
		cfg.SessionStore = defaultStore
	}

	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// EnvironmentSettings returns the inputs used to resolve the backend base url
func (c *Config) EnvironmentSettings() environment.Settings {
	return environment.Settings{
		AppEnv:     c.AppEnv,
		APIURL:     c.APIURL,
		ProdAPIURL: c.ProdAPIURL,
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "userportal", "session.yaml")
}

func validateConfig(cfg *Config) error {
	if !validEnvs[cfg.AppEnv] {
		return fmt.Errorf("invalid APP_ENV '%s'. Valid values: development, test, staging, production", cfg.AppEnv)
	}

	if !validStores[cfg.SessionStore] {
		return fmt.Errorf("invalid SESSION_STORE '%s'. Valid values: memory, file, redis", cfg.SessionStore)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.MockAPIPort < 1 || cfg.MockAPIPort > 65535 {
		return fmt.Errorf("mock api port must be between 1 and 65535, got %d", cfg.MockAPIPort)
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", cfg.IdleTimeout)
	}

	if cfg.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME cannot be empty")
	}

	return nil
}

// ValidateMockAPI checks the settings only the mock api uses.
// The default signing key is refused when APP_ENV=production.
func (c *Config) ValidateMockAPI() error {
	if c.AppEnv == "production" && c.MockAPISecret == DefaultMockAPISecret {
		return fmt.Errorf("MOCK_API_SECRET must be changed when APP_ENV=production")
	}
	return nil
}
