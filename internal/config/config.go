// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Stores        StoresConfig        `yaml:"stores"`
	Access        AccessConfig        `yaml:"access"`
	Locations     LocationsConfig     `yaml:"locations"`
	Submissions   SubmissionsConfig   `yaml:"submissions"`
	Seed          SeedConfig          `yaml:"seed"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes JWT verification. Tokens are verified either with
// a shared HMAC secret read from the environment or with keys from a JWKS
// endpoint.
type IdentityConfig struct {
	Issuer        string            `yaml:"issuer"`
	Audience      string            `yaml:"audience"`
	JWKSURL       string            `yaml:"jwks_url"`
	JWKSCacheTTL  time.Duration     `yaml:"jwks_cache_ttl"`
	HMACSecretEnv string            `yaml:"hmac_secret_env"`
	Algorithms    []string          `yaml:"algorithms"`
	AdminRole     string            `yaml:"admin_role"`
	ClaimPaths    map[string]string `yaml:"claim_paths"`
}

// HMACSecret returns the shared secret, or nil when none is configured.
func (c IdentityConfig) HMACSecret() []byte {
	if c.HMACSecretEnv == "" {
		return nil
	}
	if v := os.Getenv(c.HMACSecretEnv); v != "" {
		return []byte(v)
	}
	return nil
}

// StoresConfig selects the primary and mirror document stores.
type StoresConfig struct {
	Primary PrimaryStoreConfig `yaml:"primary"`
	Mirror  MirrorStoreConfig  `yaml:"mirror"`
}

// PrimaryStoreConfig describes the authoritative store.
type PrimaryStoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxConns        int32         `yaml:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	EnsureSchema    bool          `yaml:"ensure_schema"`
}

// MirrorStoreConfig describes the replica used for search.
type MirrorStoreConfig struct {
	Driver  string `yaml:"driver"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
	Prefix  string `yaml:"prefix"`
}

// AccessConfig describes how accessible offices are resolved.
type AccessConfig struct {
	PolicyFile string      `yaml:"policy_file"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LocationsConfig describes location table reads and office classification.
type LocationsConfig struct {
	PageSize          int           `yaml:"page_size"`
	DesignatedSuffix  string        `yaml:"designated_suffix"`
	ClassificationTTL time.Duration `yaml:"classification_ttl"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig describes the breaker in front of location table reads.
// A zero FailureThreshold disables it.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	OpenFor          time.Duration `yaml:"open_for"`
}

// SubmissionsConfig describes submission replay protection.
type SubmissionsConfig struct {
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// SeedConfig describes seed files applied at startup.
type SeedConfig struct {
	Directories  []string `yaml:"directories"`
	ApplyOnStart bool     `yaml:"apply_on_start"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogOutput string        `yaml:"log_output"`
	Tracing   TracingConfig `yaml:"tracing"`
	Metrics   MetricsConfig `yaml:"metrics"`

	// RedactFields names form fields whose values are masked when
	// submissions are logged at debug level.
	RedactFields []string `yaml:"redact_fields"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id", "Idempotency-Key"},
				MaxAge:         86400,
			},
		},
		Identity: IdentityConfig{
			JWKSCacheTTL: 1 * time.Hour,
			Algorithms:   []string{"RS256"},
			AdminRole:    "admin",
			ClaimPaths: map[string]string{
				"subject_id": "sub",
				"email":      "email",
				"roles":      "roles",
				"offices":    "offices",
			},
		},
		Stores: StoresConfig{
			Primary: PrimaryStoreConfig{
				Driver:          DriverMemory,
				MaxConns:        10,
				ConnMaxLifetime: 30 * time.Minute,
				EnsureSchema:    true,
			},
			Mirror: MirrorStoreConfig{
				Driver: DriverMemory,
				Prefix: "reportal",
			},
		},
		Access: AccessConfig{
			Cache: CacheConfig{TTL: 5 * time.Minute},
		},
		Locations: LocationsConfig{
			PageSize:          500,
			DesignatedSuffix:  "BO",
			ClassificationTTL: 30 * time.Minute,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenFor:          30 * time.Second,
			},
		},
		Submissions: SubmissionsConfig{
			IdempotencyTTL: 24 * time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Identity.Issuer == "" {
		errs = append(errs, "identity.issuer is required")
	}
	if c.Identity.Audience == "" {
		errs = append(errs, "identity.audience is required")
	}
	if c.Identity.JWKSURL == "" && c.Identity.HMACSecretEnv == "" {
		errs = append(errs, "identity.jwks_url or identity.hmac_secret_env is required")
	}

	switch c.Stores.Primary.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Stores.Primary.DSNEnv == "" {
			errs = append(errs, "stores.primary.dsn_env is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("stores.primary.driver %q is not one of memory, postgres", c.Stores.Primary.Driver))
	}
	switch c.Stores.Mirror.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Stores.Mirror.AddrEnv == "" {
			errs = append(errs, "stores.mirror.addr_env is required for redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("stores.mirror.driver %q is not one of memory, redis", c.Stores.Mirror.Driver))
	}

	if c.Locations.PageSize < 1 {
		errs = append(errs, "locations.page_size must be positive")
	}
	if c.Locations.ClassificationTTL <= 0 {
		errs = append(errs, "locations.classification_ttl must be positive")
	}
	if c.Submissions.IdempotencyTTL <= 0 {
		errs = append(errs, "submissions.idempotency_ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads REPORTAL_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPORTAL_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPORTAL_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("REPORTAL_IDENTITY_JWKS_URL"); v != "" {
		cfg.Identity.JWKSURL = v
	}
	if v := os.Getenv("REPORTAL_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("REPORTAL_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("REPORTAL_STORES_PRIMARY_DRIVER"); v != "" {
		cfg.Stores.Primary.Driver = v
	}
	if v := os.Getenv("REPORTAL_STORES_MIRROR_DRIVER"); v != "" {
		cfg.Stores.Mirror.Driver = v
	}
	if v := os.Getenv("REPORTAL_ACCESS_POLICY_FILE"); v != "" {
		cfg.Access.PolicyFile = v
	}
}
