package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation
	validProviders := []string{ProviderGoogleAI, ProviderVertexAI}
	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidProvider, c.Provider, validProviders)
	}

	// GEMINI_API_KEY is read directly by Genkit; Vertex AI uses application
	// default credentials instead.
	if c.Provider == ProviderGoogleAI && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 2. Serve mode validation
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	// 3. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "kiosk_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 4. Storefront API validation
	if c.Storefront.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidStorefront)
	}
	parsed, err := url.Parse(c.Storefront.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: base_url %q must be an absolute http(s) URL",
			ErrInvalidStorefront, c.Storefront.BaseURL)
	}
	if c.Storefront.TimeoutMs < 100 {
		return fmt.Errorf("%w: timeout_ms must be at least 100, got %d",
			ErrInvalidStorefront, c.Storefront.TimeoutMs)
	}
	if c.Storefront.RatePerSec <= 0 {
		return fmt.Errorf("%w: rate_per_sec must be positive, got %g",
			ErrInvalidStorefront, c.Storefront.RatePerSec)
	}
	if c.Storefront.Burst < 1 {
		return fmt.Errorf("%w: burst must be at least 1, got %d",
			ErrInvalidStorefront, c.Storefront.Burst)
	}
	if c.Storefront.MaxRetries < 0 || c.Storefront.MaxRetries > 5 {
		return fmt.Errorf("%w: max_retries must be between 0 and 5, got %d",
			ErrInvalidStorefront, c.Storefront.MaxRetries)
	}

	// 5. Knowledge retrieval validation
	if c.Knowledge.TopK < 1 || c.Knowledge.TopK > 20 {
		return fmt.Errorf("%w: top_k must be between 1 and 20, got %d",
			ErrInvalidKnowledge, c.Knowledge.TopK)
	}
	if c.Knowledge.ScoreThreshold < 0 || c.Knowledge.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold must be in [0,1], got %g",
			ErrInvalidKnowledge, c.Knowledge.ScoreThreshold)
	}
	if c.Knowledge.RouteConfidence < 0 || c.Knowledge.RouteConfidence > 1 {
		return fmt.Errorf("%w: route_confidence must be in [0,1], got %g",
			ErrInvalidKnowledge, c.Knowledge.RouteConfidence)
	}

	// 6. Assistant pipeline validation
	if c.Assistant.MaxConcurrentCalls < 1 || c.Assistant.MaxConcurrentCalls > 32 {
		return fmt.Errorf("%w: max_concurrent_calls must be between 1 and 32, got %d",
			ErrInvalidAssistant, c.Assistant.MaxConcurrentCalls)
	}
	if c.Assistant.ToolTimeoutMs < 100 {
		return fmt.Errorf("%w: tool_timeout_ms must be at least 100, got %d",
			ErrInvalidAssistant, c.Assistant.ToolTimeoutMs)
	}
	if c.Assistant.SessionTTLMinutes < 1 {
		return fmt.Errorf("%w: session_ttl_minutes must be at least 1, got %d",
			ErrInvalidAssistant, c.Assistant.SessionTTLMinutes)
	}
	if c.Assistant.ContextTurns < 1 || c.Assistant.ContextTurns > 100 {
		return fmt.Errorf("%w: context_turns must be between 1 and 100, got %d",
			ErrInvalidAssistant, c.Assistant.ContextTurns)
	}

	// 7. Strategy document validation
	if c.StrategiesPath == "" {
		return fmt.Errorf("%w: strategies_path cannot be empty", ErrInvalidStrategiesPath)
	}

	return nil
}
