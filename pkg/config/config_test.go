package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// setRequired sets the minimum environment for a valid jwt configuration
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APIM_JWT_SECRET", "s3cr3t")
	t.Setenv("APIM_DATABASE_URL", "postgres://localhost/apim?sslmode=disable")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8083" {
		t.Errorf("Server.Port = %s, want 8083", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %s, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Security.Type != SecurityTypeJWT {
		t.Errorf("Security.Type = %s, want jwt", cfg.Security.Type)
	}
	if cfg.Security.HeaderName != auth.DefaultHeaderName {
		t.Errorf("Security.HeaderName = %s, want %s", cfg.Security.HeaderName, auth.DefaultHeaderName)
	}
	if cfg.Security.CookieName != auth.DefaultCookieName {
		t.Errorf("Security.CookieName = %s, want %s", cfg.Security.CookieName, auth.DefaultCookieName)
	}
	if cfg.Security.Scheme != auth.DefaultScheme {
		t.Errorf("Security.Scheme = %s, want %s", cfg.Security.Scheme, auth.DefaultScheme)
	}
	if cfg.Membership.RoleCacheTTL != 0 {
		t.Errorf("Membership.RoleCacheTTL = %v, want 0", cfg.Membership.RoleCacheTTL)
	}
	if cfg.Membership.RoleCacheSize != rbac.DefaultRoleCacheSize {
		t.Errorf("Membership.RoleCacheSize = %d, want %d", cfg.Membership.RoleCacheSize, rbac.DefaultRoleCacheSize)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Observability.LogLevel = %v, want INFO", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled should default to true")
	}
	if cfg.Observability.OTelEnabled {
		t.Error("Observability.OTelEnabled should default to false")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APIM_PORT", "9000")
	t.Setenv("APIM_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("APIM_JWT_LEEWAY", "30s")
	t.Setenv("APIM_AUTH_COOKIE", "Console-Auth")
	t.Setenv("APIM_COOKIE_SECURE", "true")
	t.Setenv("APIM_ROLE_CACHE_TTL", "1m")
	t.Setenv("APIM_ROLE_CACHE_SIZE", "50")
	t.Setenv("APIM_REDIS_DB", "2")
	t.Setenv("APIM_LOG_LEVEL", "debug")
	t.Setenv("APIM_OTEL_SAMPLE_RATIO", "0.1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %s, want 9000", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Security.JWTLeeway != 30*time.Second {
		t.Errorf("Security.JWTLeeway = %v, want 30s", cfg.Security.JWTLeeway)
	}
	if cfg.Security.CookieName != "Console-Auth" || !cfg.Security.CookieSecure {
		t.Errorf("cookie settings not applied: %+v", cfg.Security)
	}
	if cfg.Membership.RoleCacheTTL != time.Minute || cfg.Membership.RoleCacheSize != 50 {
		t.Errorf("role cache settings not applied: %+v", cfg.Membership)
	}
	if cfg.Membership.RedisDB != 2 {
		t.Errorf("Membership.RedisDB = %d, want 2", cfg.Membership.RedisDB)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Observability.LogLevel = %v, want DEBUG", cfg.Observability.LogLevel)
	}
	if cfg.Observability.OTelSampleRatio != 0.1 {
		t.Errorf("Observability.OTelSampleRatio = %v, want 0.1", cfg.Observability.OTelSampleRatio)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("APIM_LOG_LEVEL", "verbose")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject an unknown log level")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8083", HealthPort: "9090"},
			Security: SecurityConfig{
				Type:      SecurityTypeJWT,
				JWTSecret: "s3cr3t",
			},
			Membership: MembershipConfig{
				DatabaseURL:   "postgres://localhost/apim",
				RoleCacheSize: 10,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid jwt", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"same ports", func(c *Config) { c.Server.HealthPort = "8083" }, true},
		{"jwt without secret", func(c *Config) { c.Security.JWTSecret = "" }, true},
		{"negative leeway", func(c *Config) { c.Security.JWTLeeway = -time.Second }, true},
		{"oidc complete", func(c *Config) {
			c.Security.Type = SecurityTypeOIDC
			c.Security.OIDCIssuerURL = "https://idp.example.com"
			c.Security.OIDCClientID = "console"
		}, false},
		{"oidc without client", func(c *Config) {
			c.Security.Type = SecurityTypeOIDC
			c.Security.OIDCIssuerURL = "https://idp.example.com"
		}, true},
		{"unknown security type", func(c *Config) { c.Security.Type = "saml" }, true},
		{"missing database", func(c *Config) { c.Membership.DatabaseURL = "" }, true},
		{"negative cache ttl", func(c *Config) { c.Membership.RoleCacheTTL = -time.Second }, true},
		{"lru cache without size", func(c *Config) {
			c.Membership.RoleCacheTTL = time.Minute
			c.Membership.RoleCacheSize = 0
		}, true},
		{"redis cache without size", func(c *Config) {
			c.Membership.RoleCacheTTL = time.Minute
			c.Membership.RoleCacheSize = 0
			c.Membership.RedisURL = "redis://localhost:6379"
		}, false},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "apim-console"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_DURATION", "5m")

	if !getEnvBool("TEST_BOOL", false) {
		t.Error("getEnvBool should accept 1")
	}
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt should fall back on parse errors, got %d", got)
	}
	if got := getEnvDuration("TEST_DURATION", 0); got != 5*time.Minute {
		t.Errorf("getEnvDuration = %v, want 5m", got)
	}
	if got := getEnv("TEST_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv = %s, want default", got)
	}
	if got := getEnvList("TEST_UNSET_VAR"); got != nil {
		t.Errorf("getEnvList = %v, want nil", got)
	}
}
