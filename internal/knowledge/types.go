package knowledge

import "time"

// Collection identifies which corpus an entry belongs to.
type Collection string

const (
	// CollectionFAQ holds help-center articles: shipping times, return
	// windows, account and payment questions.
	CollectionFAQ Collection = "faq"

	// CollectionBusinessRule holds operational rules with structured
	// applicability, e.g. signature requirements over an order total or
	// gift-card redemption constraints.
	CollectionBusinessRule Collection = "business_rule"
)

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == CollectionFAQ || c == CollectionBusinessRule
}

// Collections returns every known collection.
func Collections() []Collection {
	return []Collection{CollectionFAQ, CollectionBusinessRule}
}

// VectorDimension is the embedding width of the knowledge_entries vector
// column. Embedding model output is truncated to this many dimensions.
// Typed int32 to match the genai output-dimensionality option.
const VectorDimension int32 = 768

// Operational limits.
const (
	// DefaultTopK is the per-collection result count when neither the
	// store config nor the caller overrides it.
	DefaultTopK = 5

	// DefaultScoreThreshold is the minimum similarity score kept when
	// neither the store config nor the caller overrides it. The boundary
	// is inclusive: a match scoring exactly the threshold is returned.
	DefaultScoreThreshold = 0.55

	// MaxLimit caps any single search's result count.
	MaxLimit = 20

	// MaxQueryLen truncates pathologically long queries before embedding.
	MaxQueryLen = 2000

	// MaxContentLength bounds a single entry's text.
	MaxContentLength = 20000

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 10 * time.Second
)

// Entry is a document on its way into the index.
type Entry struct {
	Collection Collection
	Category   string
	Content    string
	AppliesTo  string
	Exceptions string
	SourceURL  string
}

// Match is a scored search hit. Score is 1 minus the cosine distance
// between the query embedding and the entry embedding; for normalized
// embeddings it lands in [0, 1]. Scores are compared and thresholded as
// stored, never recomputed downstream.
type Match struct {
	Collection Collection
	Category   string
	Content    string
	AppliesTo  string
	Exceptions string
	SourceURL  string
	Score      float64
}

// SearchOption overrides a per-call search parameter.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit     int
	threshold float64
}

// WithLimit overrides how many matches a single call returns.
func WithLimit(n int) SearchOption {
	return func(cfg *searchConfig) {
		cfg.limit = n
	}
}

// WithThreshold overrides the minimum score for a single call.
func WithThreshold(v float64) SearchOption {
	return func(cfg *searchConfig) {
		cfg.threshold = v
	}
}

// buildSearchConfig resolves store defaults plus per-call overrides,
// clamping both to usable ranges.
func buildSearchConfig(limit int, threshold float64, opts []SearchOption) searchConfig {
	cfg := searchConfig{limit: limit, threshold: threshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limit < 1 {
		cfg.limit = DefaultTopK
	}
	if cfg.limit > MaxLimit {
		cfg.limit = MaxLimit
	}
	if cfg.threshold < 0 || cfg.threshold > 1 {
		cfg.threshold = DefaultScoreThreshold
	}
	return cfg
}
