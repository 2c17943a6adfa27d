// Package config builds the process configuration once at startup. Everything
// that needs a secret or a setting receives it from Config; nothing reads the
// environment after Load returns.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sivind/sivind-backend/internal/pkg/billing"
	"github.com/sivind/sivind-backend/internal/pkg/env"
	"github.com/sivind/sivind-backend/internal/pkg/security"
)

// ErrorKind classifies a ConfigurationError.
type ErrorKind int

const (
	MissingSecret ErrorKind = iota + 1
	MissingSetting
	InvalidSetting
)

func (k ErrorKind) String() string {
	switch k {
	case MissingSecret:
		return "missing secret"
	case MissingSetting:
		return "missing setting"
	case InvalidSetting:
		return "invalid setting"
	default:
		return "unknown"
	}
}

// ConfigurationError means the process must not start.
type ConfigurationError struct {
	Key  string
	Kind ErrorKind
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Kind)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the go-sql-driver DSN used by GORM.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL returns the golang-migrate mysql URL.
func (d Database) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type Cache struct {
	Host     string
	Port     int
	Password string
}

func (c Cache) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Config struct {
	Env  string
	Host string
	Port string

	WidgetSecret   string
	WidgetTokenTTL time.Duration
	WidgetRateMax  int

	// ProxyHeader carries the visitor address set by the fronting proxy. Empty
	// (PROXY_HEADER=none) means the socket address is used.
	ProxyHeader    string
	TrustedProxies []string

	FirebaseProjectID string
	IdentityJWKSURL   string

	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
	PlanCatalog            billing.PlanCatalog
	CheckoutSuccessURL     string
	CheckoutCancelURL      string

	ExternalCallTimeout time.Duration

	Database Database
	Cache    Cache

	MetricsUser     string
	MetricsPassword string
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// UsesDatabase is false in dev when no database host is configured; the
// in-memory subscription store is used instead.
func (c *Config) UsesDatabase() bool {
	return !c.IsDev() || c.Database.Host != ""
}

// Lookup reads a single key. env.GetEnv is the production implementation.
type Lookup func(key, def string) string

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(env.GetEnv)
}

// LoadFrom builds a Config from lookup and returns the first
// *ConfigurationError encountered.
func LoadFrom(lookup Lookup) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		Env:  r.str("APP_ENV", "prod"),
		Host: r.str("APP_HOST", "0.0.0.0"),
		Port: r.str("APP_PORT", r.str("PORT", "8080")),

		WidgetSecret:   r.secret("WIDGET_SECRET"),
		WidgetTokenTTL: r.duration("WIDGET_TOKEN_TTL", security.DefaultWidgetTokenTTL),
		WidgetRateMax:  r.integer("WIDGET_RATE_LIMIT", 60),

		ProxyHeader:    r.proxyHeader(),
		TrustedProxies: r.list("TRUSTED_PROXIES"),

		FirebaseProjectID: r.required("FIREBASE_PROJECT_ID"),
		IdentityJWKSURL:   r.str("IDENTITY_JWKS_URL", security.GoogleSecureTokenJWKSURL),

		StripeSecretKey:        r.secret("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    r.secret("STRIPE_WEBHOOK_SECRET"),
		StripeWebhookTolerance: r.duration("STRIPE_WEBHOOK_TOLERANCE", billing.DefaultWebhookTolerance),
		CheckoutSuccessURL:     r.str("CHECKOUT_SUCCESS_URL", "https://sivind.com/dashboard.html"),
		CheckoutCancelURL:      r.str("CHECKOUT_CANCEL_URL", "https://sivind.com/dashboard.html"),

		ExternalCallTimeout: r.duration("EXTERNAL_CALL_TIMEOUT", billing.DefaultCallTimeout),

		Database: r.database(),
		Cache: Cache{
			Host:     r.str("CACHE_HOST", "localhost"),
			Port:     r.integer("CACHE_PORT", 6379),
			Password: r.str("CACHE_PASSWORD", ""),
		},

		MetricsUser:     r.str("METRICS_USER", ""),
		MetricsPassword: r.str("METRICS_PASSWORD", ""),
	}

	rawCatalog := r.required("PLAN_CATALOG")
	if r.err == nil {
		catalog, err := billing.ParsePlanCatalog(rawCatalog)
		if err != nil {
			r.fail("PLAN_CATALOG", InvalidSetting, err)
		} else if catalog.Len() == 0 {
			r.fail("PLAN_CATALOG", MissingSetting, nil)
		}
		cfg.PlanCatalog = catalog
	}

	if r.err == nil && cfg.UsesDatabase() {
		if cfg.Database.Host == "" {
			r.fail("DB_HOST", MissingSetting, nil)
		} else if cfg.Database.Name == "" {
			r.fail("DB_NAME", MissingSetting, nil)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that do not need
// the rest of the configuration.
func LoadDatabase() Database {
	r := reader{lookup: env.GetEnv}
	return r.database()
}

type reader struct {
	lookup Lookup
	err    *ConfigurationError
}

func (r *reader) fail(key string, kind ErrorKind, err error) {
	if r.err == nil {
		r.err = &ConfigurationError{Key: key, Kind: kind, Err: err}
	}
}

func (r *reader) str(key, def string) string {
	return strings.TrimSpace(r.lookup(key, def))
}

func (r *reader) secret(key string) string {
	v := r.str(key, "")
	if v == "" {
		r.fail(key, MissingSecret, nil)
	}
	return v
}

func (r *reader) required(key string) string {
	v := r.str(key, "")
	if v == "" {
		r.fail(key, MissingSetting, nil)
	}
	return v
}

func (r *reader) proxyHeader() string {
	v := r.str("PROXY_HEADER", "X-Forwarded-For")
	if strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

// list splits a comma separated value, dropping empty entries.
func (r *reader) list(key string) []string {
	var out []string
	for _, v := range strings.Split(r.str(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, InvalidSetting, err)
		return def
	}
	if d <= 0 {
		r.fail(key, InvalidSetting, fmt.Errorf("must be positive, got %s", d))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, InvalidSetting, err)
		return def
	}
	if n <= 0 {
		r.fail(key, InvalidSetting, fmt.Errorf("must be positive, got %d", n))
		return def
	}
	return n
}

func (r *reader) database() Database {
	return Database{
		Host:     r.str("DB_HOST", ""),
		Port:     r.str("DB_PORT", "3306"),
		User:     r.str("DB_USER", ""),
		Password: r.str("DB_PASSWORD", ""),
		Name:     r.str("DB_NAME", ""),
	}
}
