// Package config provides configuration management for the database service.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config represents the service configuration, loaded from environment
// variables. Defaults mirror a local development setup; only the API
// secret is mandatory.
type Config struct {
	// Service
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ServiceHost string `envconfig:"SERVICE_HOST" default:"0.0.0.0"`
	ServicePort int    `envconfig:"SERVICE_PORT" default:"8001"`

	// Database
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"hackit"`

	// API security
	APISecretKey            string   `envconfig:"API_SECRET_KEY" required:"true"`
	SignatureValidityWindow int      `envconfig:"SIGNATURE_VALIDITY_WINDOW" default:"300"`
	AllowedHosts            []string `envconfig:"ALLOWED_HOSTS" default:"localhost,127.0.0.1,hackit.tw,*.hackit.tw"`
	AllowedOrigins          []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8000,http://127.0.0.1:8000,https://hackit.tw,https://*.hackit.tw"`

	// Rate limiting
	RateLimitEnabled    bool   `envconfig:"API_RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRequests   int    `envconfig:"API_RATE_LIMIT_REQUESTS" default:"100"`
	RateLimitMaxClients int    `envconfig:"RATE_LIMIT_MAX_CLIENTS" default:"0"`
	RateLimitRedisAddr  string `envconfig:"RATE_LIMIT_REDIS_ADDR" default:""`

	// Avatar serving
	AvatarCacheEnabled        bool `envconfig:"AVATAR_CACHE_ENABLED" default:"true"`
	AvatarCacheTTLSeconds     int  `envconfig:"AVATAR_CACHE_TTL_SECONDS" default:"300"`
	AvatarCacheMaxEntries     int  `envconfig:"AVATAR_CACHE_MAX_ENTRIES" default:"0"`
	AvatarMaxFileSizeMB       int  `envconfig:"AVATAR_MAX_FILE_SIZE_MB" default:"2"`
	AvatarETagEnabled         bool `envconfig:"AVATAR_ETAG_ENABLED" default:"true"`
	AvatarLastModifiedEnabled bool `envconfig:"AVATAR_LAST_MODIFIED_ENABLED" default:"true"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFilePath string `envconfig:"LOG_FILE" default:""`
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production semantics
// (enforced authentication, domain allow-listing, terse error responses).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ListenAddr returns the host:port address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServiceHost, c.ServicePort)
}

// AvatarMaxFileSizeBytes returns the avatar size limit in bytes.
func (c *Config) AvatarMaxFileSizeBytes() int {
	return c.AvatarMaxFileSizeMB * 1024 * 1024
}
