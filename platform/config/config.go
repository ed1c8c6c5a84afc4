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

// DatabaseConfig provides primary database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// AnalyticsDBConfig provides connection settings for the analytics store.
// The analytics pool is sized independently from the primary pool so that
// heavy aggregate queries never starve webhook intake.
type AnalyticsDBConfig interface {
	GetAnalyticsDatabaseURL() string
	GetAnalyticsMaxConns() int32
}

// SchedulerConfig provides settings for the asynq job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetJobMaxRetry() int
	GetJobRetryBase() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetHTTPRateLimitRPS() float64
	GetHTTPRateLimitBurst() int
}

// AdminConfig provides the operator token guarding admin endpoints.
type AdminConfig interface {
	GetAdminToken() string
}

// CRMConfig provides settings for the CRM (GoHighLevel) API client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIKey() string
	GetCRMLocationID() string
}

// DialerConfig provides settings for the power-dialer (Aloware) API client.
type DialerConfig interface {
	GetDialerBaseURL() string
	GetDialerAPIKey() string
	GetDialerRateLimitRPS() float64
}

// IntakeConfig provides settings for webhook intake authentication and
// self-origin loop detection.
type IntakeConfig interface {
	GetWebhookSecret(source string) string
	GetSelfOriginTag() string
}

// AgentDirectoryConfig provides the static agent directory used by the
// agent resolver.
type AgentDirectoryConfig interface {
	GetAgentDirectoryPath() string
}

// ListMatchConfig provides the tag match mode for call-list intent rules.
type ListMatchConfig interface {
	GetListMatchMode() string
}

// AnalyticsConfig provides settings for campaign analytics recompute.
type AnalyticsConfig interface {
	GetResponseAttributionWindow() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	AnalyticsDatabaseURL      string
	AnalyticsMaxConns         int32
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	JobMaxRetry               int
	JobRetryBase              time.Duration
	CORSAllowAll              bool
	CORSOrigins               []string
	HTTPRateLimitRPS          float64
	HTTPRateLimitBurst        int
	AdminToken                string
	CRMBaseURL                string
	CRMAPIKey                 string
	CRMLocationID             string
	DialerBaseURL             string
	DialerAPIKey              string
	DialerRateLimitRPS        float64
	WebhookSecretCRM          string
	WebhookSecretDialer       string
	SelfOriginTag             string
	AgentDirectoryPath        string
	ListMatchMode             string
	ResponseAttributionWindow time.Duration
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// AnalyticsDBConfig implementation
func (c *Config) GetAnalyticsDatabaseURL() string { return c.AnalyticsDatabaseURL }
func (c *Config) GetAnalyticsMaxConns() int32     { return c.AnalyticsMaxConns }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetJobMaxRetry() int            { return c.JobMaxRetry }
func (c *Config) GetJobRetryBase() time.Duration { return c.JobRetryBase }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string          { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool        { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string     { return c.CORSOrigins }
func (c *Config) GetHTTPRateLimitRPS() float64 { return c.HTTPRateLimitRPS }
func (c *Config) GetHTTPRateLimitBurst() int   { return c.HTTPRateLimitBurst }

// AdminConfig implementation
func (c *Config) GetAdminToken() string { return c.AdminToken }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string    { return c.CRMBaseURL }
func (c *Config) GetCRMAPIKey() string     { return c.CRMAPIKey }
func (c *Config) GetCRMLocationID() string { return c.CRMLocationID }

// DialerConfig implementation
func (c *Config) GetDialerBaseURL() string       { return c.DialerBaseURL }
func (c *Config) GetDialerAPIKey() string        { return c.DialerAPIKey }
func (c *Config) GetDialerRateLimitRPS() float64 { return c.DialerRateLimitRPS }

// IntakeConfig implementation
func (c *Config) GetWebhookSecret(source string) string {
	switch source {
	case "crm":
		return c.WebhookSecretCRM
	case "dialer":
		return c.WebhookSecretDialer
	default:
		return ""
	}
}
func (c *Config) GetSelfOriginTag() string { return c.SelfOriginTag }

// AgentDirectoryConfig implementation
func (c *Config) GetAgentDirectoryPath() string { return c.AgentDirectoryPath }

// ListMatchConfig implementation
func (c *Config) GetListMatchMode() string { return c.ListMatchMode }

// AnalyticsConfig implementation
func (c *Config) GetResponseAttributionWindow() time.Duration {
	return c.ResponseAttributionWindow
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		AnalyticsDatabaseURL:      getEnv("ANALYTICS_DATABASE_URL", ""),
		AnalyticsMaxConns:         int32(mustInt64(getEnv("ANALYTICS_DB_MAX_CONNS", "5"))),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "sync"),
		AsynqConcurrency:          int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		JobMaxRetry:               int(mustInt64(getEnv("JOB_MAX_RETRY", "5"))),
		JobRetryBase:              mustDuration(getEnv("JOB_RETRY_BASE", "30s")),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		HTTPRateLimitRPS:          mustFloat(getEnv("HTTP_RATE_LIMIT_RPS", "50")),
		HTTPRateLimitBurst:        int(mustInt64(getEnv("HTTP_RATE_LIMIT_BURST", "100"))),
		AdminToken:                getEnv("ADMIN_TOKEN", ""),
		CRMBaseURL:                getEnv("CRM_BASE_URL", "https://services.leadconnectorhq.com"),
		CRMAPIKey:                 getEnv("CRM_API_KEY", ""),
		CRMLocationID:             getEnv("CRM_LOCATION_ID", ""),
		DialerBaseURL:             getEnv("DIALER_BASE_URL", "https://app.aloware.com/api/v1"),
		DialerAPIKey:              getEnv("DIALER_API_KEY", ""),
		DialerRateLimitRPS:        mustFloat(getEnv("DIALER_RATE_LIMIT_RPS", "5")),
		WebhookSecretCRM:          getEnv("WEBHOOK_SECRET_CRM", ""),
		WebhookSecretDialer:       getEnv("WEBHOOK_SECRET_DIALER", ""),
		SelfOriginTag:             getEnv("SELF_ORIGIN_TAG", "synced-by-bridge"),
		AgentDirectoryPath:        getEnv("AGENT_DIRECTORY_PATH", "agents.json"),
		ListMatchMode:             getEnv("LIST_MATCH_MODE", "case-insensitive"),
		ResponseAttributionWindow: mustDuration(getEnv("RESPONSE_ATTRIBUTION_WINDOW", "72h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AnalyticsDatabaseURL == "" {
		// The analytics store may share the primary database in small deployments.
		cfg.AnalyticsDatabaseURL = cfg.DatabaseURL
	}
	switch cfg.ListMatchMode {
	case "exact", "case-insensitive", "pattern":
	default:
		return nil, fmt.Errorf("LIST_MATCH_MODE must be exact, case-insensitive or pattern, got %q", cfg.ListMatchMode)
	}
	if cfg.JobMaxRetry < 0 {
		return nil, fmt.Errorf("JOB_MAX_RETRY must not be negative")
	}

	return cfg, nil
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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
