// Package config provides application configuration management from environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	APIM_HOST="0.0.0.0"
//	APIM_PORT="8083"
//	APIM_HEALTH_PORT="9090"
//	APIM_ALLOWED_ORIGINS="https://console.example.com"
//
// Security settings:
//
//	APIM_SECURITY_TYPE="jwt"        # jwt or oidc
//	APIM_JWT_SECRET="..."
//	APIM_JWT_ISSUER="gravitee-management-auth"
//	APIM_OIDC_ISSUER_URL="https://idp.example.com"
//	APIM_OIDC_CLIENT_ID="console"
//	APIM_AUTH_COOKIE="Auth-Graviteeio-APIM"
//
// Membership settings:
//
//	APIM_DATABASE_URL="postgres://localhost/apim?sslmode=disable"
//	APIM_ROLE_CACHE_TTL="30s"       # 0 disables caching
//	APIM_REDIS_URL="redis://localhost:6379"
//	APIM_ROLES_FILE="/etc/apim/roles.yaml"
//
// Observability settings:
//
//	APIM_LOG_LEVEL="info"
//	APIM_METRICS_ENABLED="true"
//	APIM_OTEL_ENABLED="false"
//	APIM_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
