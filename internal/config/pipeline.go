package config

import "time"

// KnowledgeConfig tunes semantic retrieval over the FAQ and business-rule
// collections.
type KnowledgeConfig struct {
	// TopK is the default result limit per search (default: 5)
	TopK int `mapstructure:"top_k" json:"top_k"`
	// ScoreThreshold is the minimum similarity score for a match to be
	// returned. The boundary is inclusive: a match scoring exactly the
	// threshold is included. (default: 0.55)
	ScoreThreshold float64 `mapstructure:"score_threshold" json:"score_threshold"`
	// RouteConfidence is the minimum top-match score for the planner to
	// answer from knowledge alone (default: 0.7)
	RouteConfidence float64 `mapstructure:"route_confidence" json:"route_confidence"`
}

// AssistantConfig tunes the query-processing pipeline.
type AssistantConfig struct {
	// MaxConcurrentCalls caps simultaneous outstanding tool calls during
	// plan execution (default: 4)
	MaxConcurrentCalls int `mapstructure:"max_concurrent_calls" json:"max_concurrent_calls"`
	// ToolTimeoutMs is the per-tool-call timeout in milliseconds (default: 5000)
	ToolTimeoutMs int `mapstructure:"tool_timeout_ms" json:"tool_timeout_ms"`
	// SessionTTLMinutes is the idle time before a session is evicted (default: 30)
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes" json:"session_ttl_minutes"`
	// ContextTurns is the number of recent turns visible to classification (default: 8)
	ContextTurns int `mapstructure:"context_turns" json:"context_turns"`
}

// ToolTimeout returns the per-call timeout as a time.Duration.
func (a AssistantConfig) ToolTimeout() time.Duration {
	return time.Duration(a.ToolTimeoutMs) * time.Millisecond
}

// SessionTTL returns the session idle TTL as a time.Duration.
func (a AssistantConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// IngestConfig holds help-center crawler settings.
type IngestConfig struct {
	// AllowedDomains restricts the crawl (empty = must be given on the
	// command line)
	AllowedDomains []string `mapstructure:"allowed_domains" json:"allowed_domains"`
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 500)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// MaxDepth bounds link-following depth (default: 3)
	MaxDepth int `mapstructure:"max_depth" json:"max_depth"`
	// LockPath overrides the ingest lock file location
	// (default: <config dir>/ingest.lock)
	LockPath string `mapstructure:"lock_path" json:"lock_path"`
}
