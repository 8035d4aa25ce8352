package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// ErrUnavailable marks failures where the index could not be consulted at
// all: embedding failure, connection loss, query error. The routing planner
// degrades to a transactional-only answer when it sees this.
var ErrUnavailable = errors.New("knowledge index unavailable")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// matchCols is the standard SELECT column list for scanMatches.
const matchCols = `collection, category, content, applies_to, exceptions, source_url`

// upsertEntrySQL inserts an entry or refreshes an existing one in place.
// The (collection, md5(content)) unique index makes re-ingest idempotent.
const upsertEntrySQL = `INSERT INTO knowledge_entries (collection, category, content, applies_to, exceptions, source_url, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (collection, md5(content)) DO UPDATE
	SET category = EXCLUDED.category,
	    applies_to = EXCLUDED.applies_to,
	    exceptions = EXCLUDED.exceptions,
	    source_url = EXCLUDED.source_url,
	    embedding = EXCLUDED.embedding,
	    updated_at = now()`

// Config carries the search defaults, normally taken from the knowledge
// section of the service configuration. Out-of-range values fall back to
// the package defaults.
type Config struct {
	TopK           int
	ScoreThreshold float64
}

// Store is the vector index over the FAQ and business-rule corpora,
// backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder ai.Embedder
	logger   *slog.Logger

	topK      int
	threshold float64
}

// New creates a knowledge Store.
func New(pool *pgxpool.Pool, embedder ai.Embedder, cfg Config, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	topK := cfg.TopK
	if topK < 1 || topK > MaxLimit {
		topK = DefaultTopK
	}
	threshold := cfg.ScoreThreshold
	if threshold < 0 || threshold > 1 {
		threshold = DefaultScoreThreshold
	}

	return &Store{
		db:        pool,
		embedder:  embedder,
		logger:    logger,
		topK:      topK,
		threshold: threshold,
	}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// embedQuery embeds a search query under EmbedTimeout. Failures are tagged
// ErrUnavailable: without an embedding the index cannot be consulted.
func (s *Store) embedQuery(ctx context.Context, query string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: embedding query: %w", ErrUnavailable, err)
	}
	return vec, nil
}

// Search finds entries in one collection similar to the query, ordered by
// score descending. Only matches scoring at or above the threshold are
// returned; the boundary is inclusive. An empty result set is valid.
func (s *Store) Search(ctx context.Context, collection Collection, query string, opts ...SearchOption) ([]Match, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("invalid collection: %q", collection)
	}
	query = normalizeQuery(query)
	if query == "" {
		return []Match{}, nil
	}
	cfg := buildSearchConfig(s.topK, s.threshold, opts)

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	// NOTE: the ::float8 cast pins the parameter type; see the pgx v5
	// inference pitfall in github.com/jackc/pgx/issues/2125.
	rows, err := s.db.Query(ctx,
		`SELECT `+matchCols+`, 1 - (embedding <=> $1) AS score
		 FROM knowledge_entries
		 WHERE collection = $2
		   AND 1 - (embedding <=> $1) >= $3::float8
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, collection, cfg.threshold, cfg.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %w", ErrUnavailable, collection, err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// HybridSearch searches both collections at once, merged and ordered by
// score descending, truncated to limit. The configured score threshold
// still applies. The planner uses this when an utterance mixes
// informational and transactional signals.
func (s *Store) HybridSearch(ctx context.Context, query string, limit int) ([]Match, error) {
	query = normalizeQuery(query)
	if query == "" {
		return []Match{}, nil
	}
	if limit < 1 {
		limit = s.topK
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+matchCols+`, 1 - (embedding <=> $1) AS score
		 FROM knowledge_entries
		 WHERE 1 - (embedding <=> $1) >= $2::float8
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, s.threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: hybrid search: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// Upsert embeds and stores one entry. Re-ingesting identical content into
// the same collection refreshes the existing row rather than duplicating it.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	if !e.Collection.Valid() {
		return fmt.Errorf("invalid collection: %q", e.Collection)
	}
	content := strings.TrimSpace(e.Content)
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("content length %d exceeds maximum %d", len(content), MaxContentLength)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, content)
	if err != nil {
		return fmt.Errorf("embedding entry: %w", err)
	}

	_, err = s.db.Exec(ctx, upsertEntrySQL,
		e.Collection, e.Category, content,
		nullable(e.AppliesTo), nullable(e.Exceptions), nullable(e.SourceURL),
		vec,
	)
	if err != nil {
		return fmt.Errorf("upserting %s entry: %w", e.Collection, err)
	}
	return nil
}

// Count reports how many entries a collection holds.
func (s *Store) Count(ctx context.Context, collection Collection) (int64, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("invalid collection: %q", collection)
	}
	var n int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_entries WHERE collection = $1`,
		collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s entries: %w", collection, err)
	}
	return n, nil
}

// DeleteBySource removes every entry ingested from the given URL. Ingest
// calls this before re-upserting a page so chunks from a shortened article
// do not linger. Returns the number of rows removed.
func (s *Store) DeleteBySource(ctx context.Context, sourceURL string) (int64, error) {
	if sourceURL == "" {
		return 0, fmt.Errorf("source URL is required")
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM knowledge_entries WHERE source_url = $1`,
		sourceURL,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting entries for %s: %w", sourceURL, err)
	}
	return tag.RowsAffected(), nil
}

// normalizeQuery trims, truncates, and rejects text PostgreSQL cannot hold.
// Returns "" when nothing searchable remains.
func normalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return ""
	}
	return query
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// scanMatches reads Match rows (matchCols plus a trailing score column).
func scanMatches(rows pgx.Rows) ([]Match, error) {
	matches := []Match{}
	for rows.Next() {
		var m Match
		var appliesTo, exceptions, sourceURL *string
		if err := rows.Scan(
			&m.Collection, &m.Category, &m.Content,
			&appliesTo, &exceptions, &sourceURL,
			&m.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if appliesTo != nil {
			m.AppliesTo = *appliesTo
		}
		if exceptions != nil {
			m.Exceptions = *exceptions
		}
		if sourceURL != nil {
			m.SourceURL = *sourceURL
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating matches: %w", ErrUnavailable, err)
	}
	return matches, nil
}
