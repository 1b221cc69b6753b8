package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// Security types
const (
	SecurityTypeJWT  = "jwt"
	SecurityTypeOIDC = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Security      SecurityConfig
	Membership    MembershipConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// SecurityConfig selects and configures the token verifier and the credential transport
type SecurityConfig struct {
	Type string

	JWTSecret string
	JWTIssuer string
	JWTLeeway time.Duration

	OIDCIssuerURL string
	OIDCClientID  string

	HeaderName string
	CookieName string
	Scheme     string

	CookiePath   string
	CookieDomain string
	CookieSecure bool
}

// MembershipConfig holds the membership store and role cache settings
type MembershipConfig struct {
	DatabaseURL      string
	DatabaseMaxConns int

	// RoleCacheTTL of zero disables role caching entirely
	RoleCacheTTL  time.Duration
	RoleCacheSize int

	RedisURL      string
	RedisPassword string
	RedisDB       int

	RolesFile string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Security:      loadSecurityConfig(),
		Membership:    loadMembershipConfig(),
		Observability: obs,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("APIM_HOST", "0.0.0.0"),
		Port:            getEnv("APIM_PORT", "8083"),
		ReadTimeout:     getEnvDuration("APIM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("APIM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("APIM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("APIM_SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  getEnvList("APIM_ALLOWED_ORIGINS"),
		HealthPort:      getEnv("APIM_HEALTH_PORT", "9090"),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Type:          strings.ToLower(getEnv("APIM_SECURITY_TYPE", SecurityTypeJWT)),
		JWTSecret:     getEnv("APIM_JWT_SECRET", ""),
		JWTIssuer:     getEnv("APIM_JWT_ISSUER", ""),
		JWTLeeway:     getEnvDuration("APIM_JWT_LEEWAY", 0),
		OIDCIssuerURL: getEnv("APIM_OIDC_ISSUER_URL", ""),
		OIDCClientID:  getEnv("APIM_OIDC_CLIENT_ID", ""),
		HeaderName:    getEnv("APIM_AUTH_HEADER", auth.DefaultHeaderName),
		CookieName:    getEnv("APIM_AUTH_COOKIE", auth.DefaultCookieName),
		Scheme:        getEnv("APIM_AUTH_SCHEME", auth.DefaultScheme),
		CookiePath:    getEnv("APIM_COOKIE_PATH", "/"),
		CookieDomain:  getEnv("APIM_COOKIE_DOMAIN", ""),
		CookieSecure:  getEnvBool("APIM_COOKIE_SECURE", false),
	}
}

func loadMembershipConfig() MembershipConfig {
	return MembershipConfig{
		DatabaseURL:      getEnv("APIM_DATABASE_URL", ""),
		DatabaseMaxConns: getEnvInt("APIM_DATABASE_MAX_CONNS", 20),
		RoleCacheTTL:     getEnvDuration("APIM_ROLE_CACHE_TTL", 0),
		RoleCacheSize:    getEnvInt("APIM_ROLE_CACHE_SIZE", rbac.DefaultRoleCacheSize),
		RedisURL:         getEnv("APIM_REDIS_URL", ""),
		RedisPassword:    getEnv("APIM_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("APIM_REDIS_DB", 0),
		RolesFile:        getEnv("APIM_ROLES_FILE", ""),
	}
}

func loadObservabilityConfig() (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(getEnv("APIM_LOG_LEVEL", "info"))
	if err != nil {
		return ObservabilityConfig{}, fmt.Errorf("invalid APIM_LOG_LEVEL: %w", err)
	}

	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("APIM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("APIM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("APIM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("APIM_OTEL_SERVICE_NAME", "apim-console"),
		OTelServiceVersion: getEnv("APIM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("APIM_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("APIM_OTEL_SAMPLE_RATIO", 1),
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Security.Type {
	case SecurityTypeJWT:
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required for jwt security")
		}
		if c.Security.JWTLeeway < 0 {
			return fmt.Errorf("JWT leeway must not be negative")
		}
	case SecurityTypeOIDC:
		if c.Security.OIDCIssuerURL == "" || c.Security.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer URL and client ID are required for oidc security")
		}
	default:
		return fmt.Errorf("invalid security type: %s (must be jwt or oidc)", c.Security.Type)
	}

	if c.Membership.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Membership.RoleCacheTTL < 0 {
		return fmt.Errorf("role cache TTL must not be negative")
	}
	if c.Membership.RoleCacheTTL > 0 && c.Membership.RedisURL == "" && c.Membership.RoleCacheSize <= 0 {
		return fmt.Errorf("role cache size must be positive when the in-memory role cache is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
