// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides the Redis/asynq settings shared by publishers and workers.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetQueuePrefix() string
	GetAsynqConcurrency() int
}

// SyncConfig provides retry and shutdown settings for the index synchronizer.
type SyncConfig interface {
	SchedulerConfig
	GetSyncMaxRetry() int
	GetSyncRetryBaseDelay() time.Duration
	GetSyncRetryMaxDelay() time.Duration
	GetSyncShutdownTimeout() time.Duration
	GetTombstoneRetention() time.Duration
}

// RouterConfig provides settings for the lead router.
type RouterConfig interface {
	GetAgentDirectoryURL() string
	GetAgentDirectoryTimeout() time.Duration
	GetRouterLoadStatus() string
	GetRouterRetryAttempts() int
	GetRouterRetryBaseDelay() time.Duration
	GetAssignmentMemoTTL() time.Duration
}

// SearchIndexConfig provides Elasticsearch settings.
type SearchIndexConfig interface {
	GetElasticsearchURLs() []string
	GetElasticsearchUsername() string
	GetElasticsearchPassword() string
	GetElasticsearchAPIKey() string
	GetSearchIndexPrefix() string
}

// EmailConfig provides settings for outgoing email.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAlertEmail() string
}

// GeocoderConfig provides settings for the address geocoder.
type GeocoderConfig interface {
	GetGeocoderURL() string
	GetGeocoderUserAgent() string
	IsGeocoderEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetSnapshotBucket() string
	IsMinIOEnabled() bool
}

// PhoneConfig provides the default region used to normalize phone numbers.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RateLimitRPS          float64
	RateLimitBurst        int
	RedisURL              string
	RedisTLSInsecure      bool
	QueuePrefix           string
	AsynqConcurrency      int
	SyncMaxRetry          int
	SyncRetryBaseDelay    time.Duration
	SyncRetryMaxDelay     time.Duration
	SyncShutdownTimeout   time.Duration
	TombstoneRetention    time.Duration
	AgentDirectoryURL     string
	AgentDirectoryTimeout time.Duration
	RouterLoadStatus      string
	RouterRetryAttempts   int
	RouterRetryBaseDelay  time.Duration
	AssignmentMemoTTL     time.Duration
	ElasticsearchURLs     []string
	ElasticsearchUsername string
	ElasticsearchPassword string
	ElasticsearchAPIKey   string
	SearchIndexPrefix     string
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	AlertEmail            string
	GeocoderURL           string
	GeocoderUserAgent     string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	SnapshotBucket        string
	PhoneDefaultRegion    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetQueuePrefix() string    { return c.QueuePrefix }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SyncConfig implementation
func (c *Config) GetSyncMaxRetry() int                  { return c.SyncMaxRetry }
func (c *Config) GetSyncRetryBaseDelay() time.Duration  { return c.SyncRetryBaseDelay }
func (c *Config) GetSyncRetryMaxDelay() time.Duration   { return c.SyncRetryMaxDelay }
func (c *Config) GetSyncShutdownTimeout() time.Duration { return c.SyncShutdownTimeout }
func (c *Config) GetTombstoneRetention() time.Duration  { return c.TombstoneRetention }

// RouterConfig implementation
func (c *Config) GetAgentDirectoryURL() string            { return c.AgentDirectoryURL }
func (c *Config) GetAgentDirectoryTimeout() time.Duration { return c.AgentDirectoryTimeout }
func (c *Config) GetRouterLoadStatus() string             { return c.RouterLoadStatus }
func (c *Config) GetRouterRetryAttempts() int             { return c.RouterRetryAttempts }
func (c *Config) GetRouterRetryBaseDelay() time.Duration  { return c.RouterRetryBaseDelay }
func (c *Config) GetAssignmentMemoTTL() time.Duration     { return c.AssignmentMemoTTL }

// SearchIndexConfig implementation
func (c *Config) GetElasticsearchURLs() []string   { return c.ElasticsearchURLs }
func (c *Config) GetElasticsearchUsername() string { return c.ElasticsearchUsername }
func (c *Config) GetElasticsearchPassword() string { return c.ElasticsearchPassword }
func (c *Config) GetElasticsearchAPIKey() string   { return c.ElasticsearchAPIKey }
func (c *Config) GetSearchIndexPrefix() string     { return c.SearchIndexPrefix }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAlertEmail() string       { return c.AlertEmail }

// GeocoderConfig implementation
func (c *Config) GetGeocoderURL() string       { return c.GeocoderURL }
func (c *Config) GetGeocoderUserAgent() string { return c.GeocoderUserAgent }
func (c *Config) IsGeocoderEnabled() bool      { return c.GeocoderURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetSnapshotBucket() string { return c.SnapshotBucket }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// Load reads configuration from environment variables.
// Only value formats are checked here; each binary validates the settings it needs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:          mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:        mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		QueuePrefix:           getEnv("QUEUE_PREFIX", "searchahouse"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SyncMaxRetry:          mustInt(getEnv("SYNC_MAX_RETRY", "8")),
		SyncRetryBaseDelay:    mustDuration(getEnv("SYNC_RETRY_BASE_DELAY", "2s")),
		SyncRetryMaxDelay:     mustDuration(getEnv("SYNC_RETRY_MAX_DELAY", "5m")),
		SyncShutdownTimeout:   mustDuration(getEnv("SYNC_SHUTDOWN_TIMEOUT", "30s")),
		TombstoneRetention:    mustDuration(getEnv("TOMBSTONE_RETENTION", "168h")),
		AgentDirectoryURL:     strings.TrimRight(getEnv("AGENT_DIRECTORY_URL", ""), "/"),
		AgentDirectoryTimeout: mustDuration(getEnv("AGENT_DIRECTORY_TIMEOUT", "5s")),
		RouterLoadStatus:      strings.ToUpper(strings.TrimSpace(getEnv("ROUTER_LOAD_STATUS", "CONTACTED"))),
		RouterRetryAttempts:   mustInt(getEnv("ROUTER_RETRY_ATTEMPTS", "3")),
		RouterRetryBaseDelay:  mustDuration(getEnv("ROUTER_RETRY_BASE_DELAY", "200ms")),
		AssignmentMemoTTL:     mustDuration(getEnv("ASSIGNMENT_MEMO_TTL", "24h")),
		ElasticsearchURLs:     splitCSV(getEnv("ELASTICSEARCH_URLS", "http://localhost:9200")),
		ElasticsearchUsername: getEnv("ELASTICSEARCH_USERNAME", ""),
		ElasticsearchPassword: getEnv("ELASTICSEARCH_PASSWORD", ""),
		ElasticsearchAPIKey:   getEnv("ELASTICSEARCH_API_KEY", ""),
		SearchIndexPrefix:     getEnv("SEARCH_INDEX_PREFIX", "searchahouse"),
		EmailEnabled:          emailEnabled && smtpHost != "",
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Searchahouse"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		AlertEmail:            getEnv("ALERT_EMAIL", ""),
		GeocoderURL:           getEnv("GEOCODER_URL", ""),
		GeocoderUserAgent:     getEnv("GEOCODER_USER_AGENT", "Searchahouse/1.0"),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		SnapshotBucket:        getEnv("MINIO_BUCKET_SNAPSHOTS", "index-snapshots"),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
	}

	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RouterLoadStatus != "CONTACTED" && cfg.RouterLoadStatus != "UNCONTACTED" {
		return nil, fmt.Errorf("ROUTER_LOAD_STATUS must be CONTACTED or UNCONTACTED, got %q", cfg.RouterLoadStatus)
	}
	if cfg.AgentDirectoryTimeout <= 0 {
		return nil, fmt.Errorf("AGENT_DIRECTORY_TIMEOUT must be a positive duration")
	}
	if cfg.SyncMaxRetry < 0 {
		return nil, fmt.Errorf("SYNC_MAX_RETRY cannot be negative")
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS cannot be negative")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	return cfg, nil
}

// RequireDatabase returns an error when DATABASE_URL is not set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// RequireRedis returns an error when REDIS_URL is not set.
func (c *Config) RequireRedis() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// RequireAgentDirectory returns an error when AGENT_DIRECTORY_URL is not set.
func (c *Config) RequireAgentDirectory() error {
	if c.AgentDirectoryURL == "" {
		return fmt.Errorf("AGENT_DIRECTORY_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
