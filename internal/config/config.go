package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is shared by the backend server and the register terminal. Each
// process reads only the fields it needs.
type Config struct {
	Port          string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin string        `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	StoreID       string        `envconfig:"DEFAULT_STORE_ID" default:"main-store"`
	ViewCacheTTL  time.Duration `envconfig:"VIEW_CACHE_TTL" default:"30s"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"text"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	ManagerPIN     string        `envconfig:"MANAGER_PIN"`

	Currency string `envconfig:"CURRENCY" default:"USD"`
	Locale   string `envconfig:"LOCALE" default:"en-US"`

	APIURL            string        `envconfig:"API_URL" default:"http://127.0.0.1:8080"`
	RegisterUser      string        `envconfig:"REGISTER_USER"`
	RegisterPassword  string        `envconfig:"REGISTER_PASSWORD"`
	CartFlushInterval time.Duration `envconfig:"CART_FLUSH_INTERVAL" default:"5s"`
	CartStorageKey    string        `envconfig:"CART_STORAGE_KEY" default:"pos-cart"`
	CartSnapshotDir   string        `envconfig:"CART_SNAPSHOT_DIR"`
	CheckoutAttempts  int           `envconfig:"CHECKOUT_ATTEMPTS" default:"3"`
	CheckoutBackoff   time.Duration `envconfig:"CHECKOUT_BACKOFF" default:"1s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	if cfg.ViewCacheTTL <= 0 {
		cfg.ViewCacheTTL = 30 * time.Second
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.CartFlushInterval <= 0 {
		cfg.CartFlushInterval = 5 * time.Second
	}
	if cfg.CheckoutAttempts < 1 {
		cfg.CheckoutAttempts = 1
	}
	if cfg.CartStorageKey == "" {
		cfg.CartStorageKey = "pos-cart"
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
