package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const (
	envPrefix = "STOREFRONT_"
	// FileEnv names an optional YAML file loaded before the environment.
	FileEnv = "STOREFRONT_CONFIG"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		RequestTimeout  time.Duration `koanf:"request_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Store struct {
		// Backend is "mongo" or "memory".
		Backend string `koanf:"backend"`
	} `koanf:"store"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Cache struct {
		StatusTTL time.Duration `koanf:"status_ttl"`
	} `koanf:"cache"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
		GroupID string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Outbox struct {
		Tick            time.Duration `koanf:"tick"`
		BatchSize       int           `koanf:"batch_size"`
		BreakerFailures uint32        `koanf:"breaker_failures"`
		BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	} `koanf:"outbox"`

	Delivery struct {
		Savar   string `koanf:"savar"`
		Dhaka   string `koanf:"dhaka"`
		Default string `koanf:"default"`
	} `koanf:"delivery"`

	Security struct {
		JWTSecret     string        `koanf:"jwt_secret"`
		Issuer        string        `koanf:"issuer"`
		Audience      string        `koanf:"audience"`
		TTL           time.Duration `koanf:"ttl"`
		AdminEmail    string        `koanf:"admin_email"`
		AdminPassword string        `koanf:"admin_password"`
	} `koanf:"security"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":                "storefront",
		"app.http_addr":           ":8080",
		"app.log_level":           "info",
		"http.read_timeout":       "10s",
		"http.write_timeout":      "15s",
		"http.idle_timeout":       "60s",
		"http.request_timeout":    "30s",
		"http.shutdown_timeout":   "15s",
		"store.backend":           "mongo",
		"mongo.uri":               "mongodb://localhost:27017/?replicaSet=rs0",
		"mongo.database":          "storefront",
		"cache.status_ttl":        "15m",
		"idempotency.ttl":         "24h",
		"kafka.topic":             "storefront-orders",
		"kafka.group_id":          "storefront-status-cache",
		"outbox.tick":             "1s",
		"outbox.batch_size":       100,
		"outbox.breaker_failures": 5,
		"outbox.breaker_timeout":  "30s",
		"delivery.savar":          "70",
		"delivery.dhaka":          "110",
		"delivery.default":        "150",
		"security.issuer":         "storefront",
		"security.audience":       "storefront-admin",
		"security.ttl":            "12h",
	}
}

// Load reads defaults, then the YAML file named by STOREFRONT_CONFIG if
// set, then STOREFRONT_ environment variables (nested keys joined with __,
// e.g. STOREFRONT_MONGO__URI).
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		if s == FileEnv {
			return ""
		}
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	// comma separated broker lists from the environment
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	switch c.Store.Backend {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.uri and mongo.database required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be mongo or memory, got %q", c.Store.Backend))
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwt_secret required"))
	}
	if c.Security.TTL <= 0 {
		errs = append(errs, errors.New("security.ttl must be positive"))
	}
	if _, err := c.DeliveryTiers(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) DeliveryTiers() (pricing.DeliveryTiers, error) {
	var tiers pricing.DeliveryTiers
	for _, f := range []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"delivery.savar", c.Delivery.Savar, &tiers.Savar},
		{"delivery.dhaka", c.Delivery.Dhaka, &tiers.Dhaka},
		{"delivery.default", c.Delivery.Default, &tiers.Default},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil || d.IsNegative() {
			return pricing.DeliveryTiers{}, fmt.Errorf("%s must be a non-negative amount, got %q", f.key, f.raw)
		}
		*f.dst = d
	}
	return tiers, nil
}

func (c Config) IdentitySettings() identity.Settings {
	return identity.Settings{
		Secret:        c.Security.JWTSecret,
		Issuer:        c.Security.Issuer,
		Audience:      c.Security.Audience,
		TTL:           c.Security.TTL,
		AdminEmail:    c.Security.AdminEmail,
		AdminPassword: c.Security.AdminPassword,
	}
}
