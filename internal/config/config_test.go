package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.HandlerTimeout != 5*time.Second {
		t.Errorf("Server.HandlerTimeout = %v, want 5s", cfg.Server.HandlerTimeout)
	}
	// Unset in the file, so the default survives.
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 30s default", cfg.Server.WriteTimeout)
	}
	if cfg.Stores.Primary.Driver != DriverPostgres || cfg.Stores.Primary.DSNEnv != "REPORTAL_PG_DSN" {
		t.Errorf("Stores.Primary = %+v", cfg.Stores.Primary)
	}
	if cfg.Stores.Mirror.Driver != DriverRedis || cfg.Stores.Mirror.DB != 2 {
		t.Errorf("Stores.Mirror = %+v", cfg.Stores.Mirror)
	}
	if cfg.Stores.Mirror.Prefix != "reportal" {
		t.Errorf("Stores.Mirror.Prefix = %q, want default", cfg.Stores.Mirror.Prefix)
	}
	if cfg.Access.Cache.TTL != time.Minute {
		t.Errorf("Access.Cache.TTL = %v, want 1m", cfg.Access.Cache.TTL)
	}
	if cfg.Locations.PageSize != 200 || cfg.Locations.DesignatedSuffix != "HQ" {
		t.Errorf("Locations = %+v", cfg.Locations)
	}
	if !cfg.Seed.ApplyOnStart || len(cfg.Seed.Directories) != 1 {
		t.Errorf("Seed = %+v", cfg.Seed)
	}
	if cfg.Identity.AdminRole != "admin" {
		t.Errorf("Identity.AdminRole = %q, want admin", cfg.Identity.AdminRole)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoad_missing_identity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load() should fail without identity settings")
	}
	for _, want := range []string{"identity.issuer", "identity.audience", "identity.jwks_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_missing_file(t *testing.T) {
	if _, err := Load("testdata/nope.yaml"); err == nil {
		t.Fatal("Load() of a missing file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REPORTAL_SERVER_PORT", "3000")
	t.Setenv("REPORTAL_IDENTITY_ISSUER", "https://env-issuer.com")
	t.Setenv("REPORTAL_IDENTITY_AUDIENCE", "env-audience")
	t.Setenv("REPORTAL_OBSERVABILITY_LOG_LEVEL", "error")
	t.Setenv("REPORTAL_STORES_MIRROR_DRIVER", "memory")
	t.Setenv("REPORTAL_ACCESS_POLICY_FILE", "/etc/reportal/policy.yaml")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://env-issuer.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "env-audience" {
		t.Errorf("Identity.Audience = %q, want env override", cfg.Identity.Audience)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
	if cfg.Stores.Mirror.Driver != DriverMemory {
		t.Errorf("Stores.Mirror.Driver = %q, want memory", cfg.Stores.Mirror.Driver)
	}
	if cfg.Access.PolicyFile != "/etc/reportal/policy.yaml" {
		t.Errorf("Access.PolicyFile = %q", cfg.Access.PolicyFile)
	}
}

func validDefaults() *Config {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Identity.Audience = "reportal"
	cfg.Identity.JWKSURL = "https://auth.example.com/.well-known/jwks.json"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults pass", mutate: func(*Config) {}},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "hmac instead of jwks", mutate: func(c *Config) {
			c.Identity.JWKSURL = ""
			c.Identity.HMACSecretEnv = "SECRET"
		}},
		{name: "no key source", mutate: func(c *Config) { c.Identity.JWKSURL = "" }, wantErr: "identity.jwks_url"},
		{name: "unknown primary", mutate: func(c *Config) { c.Stores.Primary.Driver = "mysql" }, wantErr: "stores.primary.driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Stores.Primary.Driver = DriverPostgres }, wantErr: "dsn_env"},
		{name: "redis without addr", mutate: func(c *Config) { c.Stores.Mirror.Driver = DriverRedis }, wantErr: "addr_env"},
		{name: "zero page size", mutate: func(c *Config) { c.Locations.PageSize = 0 }, wantErr: "page_size"},
		{name: "zero classification ttl", mutate: func(c *Config) { c.Locations.ClassificationTTL = 0 }, wantErr: "classification_ttl"},
		{name: "zero idempotency ttl", mutate: func(c *Config) { c.Submissions.IdempotencyTTL = 0 }, wantErr: "idempotency_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestIdentityConfig_HMACSecret(t *testing.T) {
	t.Setenv("REPORTAL_TEST_SECRET", "s3cret")
	c := IdentityConfig{HMACSecretEnv: "REPORTAL_TEST_SECRET"}
	if got := string(c.HMACSecret()); got != "s3cret" {
		t.Errorf("HMACSecret() = %q", got)
	}
	if (IdentityConfig{}).HMACSecret() != nil {
		t.Error("HMACSecret() without env name should be nil")
	}
	if (IdentityConfig{HMACSecretEnv: "REPORTAL_UNSET_SECRET_X"}).HMACSecret() != nil {
		t.Error("HMACSecret() with unset env should be nil")
	}
}
