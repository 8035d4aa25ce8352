// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kiosk/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: embedding provider and model for the knowledge index
//   - Storage: PostgreSQL connection (see storage.go)
//   - Storefront: transactional API endpoint and client limits (see storefront.go)
//   - Knowledge / Assistant: retrieval and pipeline tuning (see pipeline.go)
//   - Observability: OTLP trace export (see observability.go)
//
// Security: Sensitive data (passwords, API tokens) are never logged; config
// directory uses 0750 permissions.
// Validation: Comprehensive range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidStorefront indicates the storefront API configuration is invalid.
	ErrInvalidStorefront = errors.New("invalid storefront configuration")

	// ErrInvalidKnowledge indicates the knowledge retrieval configuration is invalid.
	ErrInvalidKnowledge = errors.New("invalid knowledge configuration")

	// ErrInvalidAssistant indicates the assistant pipeline configuration is invalid.
	ErrInvalidAssistant = errors.New("invalid assistant configuration")

	// ErrInvalidStrategiesPath indicates the strategy document path is invalid.
	ErrInvalidStrategiesPath = errors.New("invalid strategies path")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). Our pgvector schema uses 768 dimensions; see
	// knowledge.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultListenAddr is the default HTTP listen address for serve mode.
	DefaultListenAddr = ":8080"

	// DefaultStrategiesPath is the default strategy document location,
	// resolved relative to the working directory.
	DefaultStrategiesPath = "strategies.yaml"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderVertexAI = "vertexai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update
// MarshalJSON or the nested struct's MarshalJSON.
type Config struct {
	// AI embedding configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "googleai" (default) or "vertexai"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// HTTP serve mode
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// StrategiesPath locates the declarative business-strategy document.
	StrategiesPath string `mapstructure:"strategies_path" json:"strategies_path"`

	// Storefront transactional API (see storefront.go)
	Storefront StorefrontConfig `mapstructure:"storefront" json:"storefront"`

	// Knowledge retrieval tuning (see pipeline.go)
	Knowledge KnowledgeConfig `mapstructure:"knowledge" json:"knowledge"`

	// Assistant pipeline tuning (see pipeline.go)
	Assistant AssistantConfig `mapstructure:"assistant" json:"assistant"`

	// Ingest crawler settings (see pipeline.go)
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Observability configuration (see observability.go)
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.kiosk/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kiosk")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	// Serve defaults
	viper.SetDefault("listen_addr", DefaultListenAddr)
	// CORS defaults (Vite storefront dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	// Proxy trust (default: false, safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kiosk")
	viper.SetDefault("postgres_password", "kiosk_dev_password")
	viper.SetDefault("postgres_db_name", "kiosk")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Strategy document
	viper.SetDefault("strategies_path", DefaultStrategiesPath)

	// Storefront defaults
	viper.SetDefault("storefront.base_url", "http://localhost:3000/api")
	viper.SetDefault("storefront.timeout_ms", 10000)
	viper.SetDefault("storefront.rate_per_sec", 8)
	viper.SetDefault("storefront.burst", 16)
	viper.SetDefault("storefront.max_retries", 2)

	// Knowledge retrieval defaults
	viper.SetDefault("knowledge.top_k", 5)
	viper.SetDefault("knowledge.score_threshold", 0.55)
	viper.SetDefault("knowledge.route_confidence", 0.7)

	// Assistant pipeline defaults
	viper.SetDefault("assistant.max_concurrent_calls", 4)
	viper.SetDefault("assistant.tool_timeout_ms", 5000)
	viper.SetDefault("assistant.session_ttl_minutes", 30)
	viper.SetDefault("assistant.context_turns", 8)

	// Ingest defaults
	viper.SetDefault("ingest.parallelism", 2)
	viper.SetDefault("ingest.delay_ms", 500)
	viper.SetDefault("ingest.max_depth", 3)
	viper.SetDefault("ingest.lock_path", "")

	// Observability defaults
	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.endpoint", "localhost:4318")
	viper.SetDefault("observability.environment", "dev")
	viper.SetDefault("observability.service_name", "kiosk")

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; validation
// checks its presence based on the selected provider in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Serve mode
	mustBind("listen_addr", "KIOSK_LISTEN_ADDR")
	mustBind("cors_origins", "KIOSK_CORS_ORIGINS")
	mustBind("trust_proxy", "KIOSK_TRUST_PROXY")

	// AI overrides
	mustBind("provider", "KIOSK_PROVIDER")
	mustBind("embedder_model", "KIOSK_EMBEDDER_MODEL")

	// Storefront API
	mustBind("storefront.base_url", "KIOSK_STOREFRONT_URL")
	mustBind("storefront.api_token", "KIOSK_STOREFRONT_TOKEN")

	// Strategy document
	mustBind("strategies_path", "KIOSK_STRATEGIES")

	// Observability
	mustBind("observability.enabled", "KIOSK_TRACING_ENABLED")
	mustBind("observability.endpoint", "KIOSK_OTLP_ENDPOINT")

	// Logging
	mustBind("log_level", "KIOSK_LOG_LEVEL")
	mustBind("log_json", "KIOSK_LOG_JSON")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: passwords with "*" leaked
// - "[REDACTED]" failed: passwords with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
// For longer secrets, shows partial chars with unique separator.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	// Example attack: input "00***" → output "00******" contains "00***"
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "my_long_secret_key_123" → "my<████████>23"
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - Storefront.APIToken (via StorefrontConfig.MarshalJSON)
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON. The compiler will remind you when tests fail.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	// Note: Storefront.APIToken is handled by its own MarshalJSON
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
