package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEmbedder implements ai.Embedder for testing
type mockEmbedder struct {
	delay         time.Duration // simulate processing delay
	embedErr      error         // error to return
	returnEmpty   bool          // return empty embeddings
	returnNil     bool          // return nil embeddings array
	embeddings    []float32     // custom embeddings to return
	callCount     int           // track number of calls
	lastInputText string        // track last input for verification
}

func (m *mockEmbedder) Name() string {
	return "mock-embedder"
}

func (m *mockEmbedder) Register(r api.Registry) {
	// No-op for testing
}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++

	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnNil {
		return &ai.EmbedResponse{Embeddings: nil}, nil
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{
			Embeddings: []*ai.Embedding{{Embedding: []float32{}}},
		}, nil
	}

	embeddings := m.embeddings
	if embeddings == nil {
		embeddings = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: embeddings}},
	}, nil
}

// mockQuerier implements querier. Query and Exec record their arguments and
// return configured errors; tests that need scanned rows live in the
// integration suite against a real database.
type mockQuerier struct {
	execErr  error
	queryErr error
	row      pgx.Row

	execCalls  int
	queryCalls int
	lastSQL    string
	lastArgs   []any
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execCalls++
	m.lastSQL = sql
	m.lastArgs = args
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.queryCalls++
	m.lastSQL = sql
	m.lastArgs = args
	if m.queryErr == nil {
		panic("mockQuerier.Query needs queryErr; row scanning is integration-tested")
	}
	return nil, m.queryErr
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.lastSQL = sql
	m.lastArgs = args
	return m.row
}

// staticRow implements pgx.Row for QueryRow paths.
type staticRow struct {
	count int64
	err   error
}

func (r staticRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*int64); ok {
			*p = r.count
		}
	}
	return nil
}

func testStore(db querier, embedder ai.Embedder) *Store {
	return &Store{
		db:        db,
		embedder:  embedder,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		topK:      DefaultTopK,
		threshold: DefaultScoreThreshold,
	}
}

var errPGDown = errors.New("connection refused")

// ============================================================================
// Constructor Tests
// ============================================================================

func TestNew_NilPool(t *testing.T) {
	_, err := New(nil, &mockEmbedder{}, Config{}, nil)
	if err == nil {
		t.Fatal("New(nil pool) expected error, got nil")
	}
	if !strings.Contains(err.Error(), "pool is required") {
		t.Errorf("New(nil pool) error = %q, want contains %q", err, "pool is required")
	}
}

func TestNew_NilEmbedder(t *testing.T) {
	// Pool check fires first, so both nil still reports the pool. Passing a
	// non-nil pool requires a database; the embedder check is reached through
	// the integration suite constructor path instead. Here we only pin the
	// message ordering.
	_, err := New(nil, nil, Config{}, nil)
	if err == nil {
		t.Fatal("New(nil, nil) expected error, got nil")
	}
	if !strings.Contains(err.Error(), "pool is required") {
		t.Errorf("New(nil, nil) error = %q, want pool reported first", err)
	}
}

// ============================================================================
// Search Option Tests
// ============================================================================

func TestBuildSearchConfig(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		threshold     float64
		opts          []SearchOption
		wantLimit     int
		wantThreshold float64
	}{
		{
			name:          "defaults pass through",
			limit:         5,
			threshold:     0.55,
			wantLimit:     5,
			wantThreshold: 0.55,
		},
		{
			name:          "WithLimit overrides",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithLimit(3)},
			wantLimit:     3,
			wantThreshold: 0.55,
		},
		{
			name:          "WithThreshold overrides",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithThreshold(0.8)},
			wantLimit:     5,
			wantThreshold: 0.8,
		},
		{
			name:          "zero threshold override is kept",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithThreshold(0)},
			wantLimit:     5,
			wantThreshold: 0,
		},
		{
			name:          "limit below one falls back to default",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithLimit(0)},
			wantLimit:     DefaultTopK,
			wantThreshold: 0.55,
		},
		{
			name:          "limit above cap is clamped",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithLimit(500)},
			wantLimit:     MaxLimit,
			wantThreshold: 0.55,
		},
		{
			name:          "threshold above one falls back to default",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithThreshold(1.5)},
			wantLimit:     5,
			wantThreshold: DefaultScoreThreshold,
		},
		{
			name:          "negative threshold falls back to default",
			limit:         5,
			threshold:     0.55,
			opts:          []SearchOption{WithThreshold(-0.1)},
			wantLimit:     5,
			wantThreshold: DefaultScoreThreshold,
		},
		{
			name:          "bad store defaults are repaired",
			limit:         -7,
			threshold:     3,
			wantLimit:     DefaultTopK,
			wantThreshold: DefaultScoreThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchConfig(tt.limit, tt.threshold, tt.opts)
			if got.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", got.limit, tt.wantLimit)
			}
			if got.threshold != tt.wantThreshold {
				t.Errorf("threshold = %v, want %v", got.threshold, tt.wantThreshold)
			}
		})
	}
}

// ============================================================================
// Search Tests
// ============================================================================

func TestSearch_InvalidCollection(t *testing.T) {
	me := &mockEmbedder{}
	store := testStore(&mockQuerier{}, me)

	_, err := store.Search(context.Background(), Collection("catalog"), "shipping times")
	if err == nil {
		t.Fatal("Search(invalid collection) expected error, got nil")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("invalid collection should not be ErrUnavailable")
	}
	if me.callCount != 0 {
		t.Errorf("embedder called %d times, want 0", me.callCount)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "empty", query: ""},
		{name: "whitespace only", query: "   \t\n"},
		{name: "NUL byte", query: "shipping\x00times"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := &mockEmbedder{}
			store := testStore(&mockQuerier{}, me)

			got, err := store.Search(context.Background(), CollectionFAQ, tt.query)
			if err != nil {
				t.Fatalf("Search(%q) unexpected error: %v", tt.query, err)
			}
			if len(got) != 0 {
				t.Errorf("Search(%q) = %d matches, want 0", tt.query, len(got))
			}
			if me.callCount != 0 {
				t.Errorf("embedder called %d times, want 0", me.callCount)
			}
		})
	}
}

func TestSearch_QueryTruncation(t *testing.T) {
	me := &mockEmbedder{}
	mq := &mockQuerier{queryErr: errPGDown}
	store := testStore(mq, me)

	long := strings.Repeat("a", MaxQueryLen+500)
	_, err := store.Search(context.Background(), CollectionFAQ, long)
	if err == nil {
		t.Fatal("expected query error from mock")
	}
	if len(me.lastInputText) != MaxQueryLen {
		t.Errorf("embedded query length = %d, want %d", len(me.lastInputText), MaxQueryLen)
	}
}

func TestSearch_EmbedFailureIsUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		embedder *mockEmbedder
	}{
		{name: "embedder error", embedder: &mockEmbedder{embedErr: errors.New("quota exhausted")}},
		{name: "nil embeddings", embedder: &mockEmbedder{returnNil: true}},
		{name: "empty embeddings", embedder: &mockEmbedder{returnEmpty: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mq := &mockQuerier{queryErr: errPGDown}
			store := testStore(mq, tt.embedder)

			_, err := store.Search(context.Background(), CollectionFAQ, "return policy")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("Search() error = %v, want ErrUnavailable", err)
			}
			if mq.queryCalls != 0 {
				t.Errorf("database queried %d times after embed failure, want 0", mq.queryCalls)
			}
		})
	}
}

func TestSearch_QueryFailureIsUnavailable(t *testing.T) {
	mq := &mockQuerier{queryErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	_, err := store.Search(context.Background(), CollectionFAQ, "return policy")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search() error = %v, want ErrUnavailable", err)
	}
	if !errors.Is(err, errPGDown) {
		t.Errorf("Search() error = %v, want wrapped cause %v", err, errPGDown)
	}
	if mq.queryCalls != 1 {
		t.Errorf("query calls = %d, want 1", mq.queryCalls)
	}
}

func TestSearch_PassesDefaultsToQuery(t *testing.T) {
	mq := &mockQuerier{queryErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	_, _ = store.Search(context.Background(), CollectionFAQ, "return policy")

	// args: vector, collection, threshold, limit
	if len(mq.lastArgs) != 4 {
		t.Fatalf("query args = %d, want 4", len(mq.lastArgs))
	}
	if got := mq.lastArgs[1]; got != CollectionFAQ {
		t.Errorf("collection arg = %v, want %v", got, CollectionFAQ)
	}
	if got := mq.lastArgs[2]; got != DefaultScoreThreshold {
		t.Errorf("threshold arg = %v, want %v", got, DefaultScoreThreshold)
	}
	if got := mq.lastArgs[3]; got != DefaultTopK {
		t.Errorf("limit arg = %v, want %v", got, DefaultTopK)
	}
}

func TestSearch_PassesOverridesToQuery(t *testing.T) {
	mq := &mockQuerier{queryErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	_, _ = store.Search(context.Background(), CollectionBusinessRule, "gift card rules",
		WithLimit(3), WithThreshold(0.8))

	if len(mq.lastArgs) != 4 {
		t.Fatalf("query args = %d, want 4", len(mq.lastArgs))
	}
	if got := mq.lastArgs[1]; got != CollectionBusinessRule {
		t.Errorf("collection arg = %v, want %v", got, CollectionBusinessRule)
	}
	if got := mq.lastArgs[2]; got != 0.8 {
		t.Errorf("threshold arg = %v, want 0.8", got)
	}
	if got := mq.lastArgs[3]; got != 3 {
		t.Errorf("limit arg = %v, want 3", got)
	}
}

// ============================================================================
// HybridSearch Tests
// ============================================================================

func TestHybridSearch_EmptyQuery(t *testing.T) {
	me := &mockEmbedder{}
	store := testStore(&mockQuerier{}, me)

	got, err := store.HybridSearch(context.Background(), "  ", 5)
	if err != nil {
		t.Fatalf("HybridSearch() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("HybridSearch() = %d matches, want 0", len(got))
	}
	if me.callCount != 0 {
		t.Errorf("embedder called %d times, want 0", me.callCount)
	}
}

func TestHybridSearch_FailureIsUnavailable(t *testing.T) {
	mq := &mockQuerier{queryErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	_, err := store.HybridSearch(context.Background(), "where is my order", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("HybridSearch() error = %v, want ErrUnavailable", err)
	}
}

func TestHybridSearch_LimitClamping(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit any
	}{
		{name: "zero uses store topK", limit: 0, wantLimit: DefaultTopK},
		{name: "negative uses store topK", limit: -3, wantLimit: DefaultTopK},
		{name: "oversized clamps to MaxLimit", limit: 999, wantLimit: MaxLimit},
		{name: "in range passes through", limit: 7, wantLimit: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mq := &mockQuerier{queryErr: errPGDown}
			store := testStore(mq, &mockEmbedder{})

			_, _ = store.HybridSearch(context.Background(), "where is my order", tt.limit)

			// args: vector, threshold, limit
			if len(mq.lastArgs) != 3 {
				t.Fatalf("query args = %d, want 3", len(mq.lastArgs))
			}
			if got := mq.lastArgs[2]; got != tt.wantLimit {
				t.Errorf("limit arg = %v, want %v", got, tt.wantLimit)
			}
		})
	}
}

// ============================================================================
// Upsert Tests
// ============================================================================

func TestUpsert_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr string
	}{
		{
			name:    "invalid collection",
			entry:   Entry{Collection: "catalog", Content: "text"},
			wantErr: "invalid collection",
		},
		{
			name:    "empty content",
			entry:   Entry{Collection: CollectionFAQ, Content: "   "},
			wantErr: "content is required",
		},
		{
			name:    "oversized content",
			entry:   Entry{Collection: CollectionFAQ, Content: strings.Repeat("a", MaxContentLength+1)},
			wantErr: "exceeds maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := &mockEmbedder{}
			store := testStore(&mockQuerier{}, me)

			err := store.Upsert(context.Background(), tt.entry)
			if err == nil {
				t.Fatal("Upsert() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Upsert() error = %q, want contains %q", err, tt.wantErr)
			}
			if me.callCount != 0 {
				t.Errorf("embedder called %d times, want 0", me.callCount)
			}
		})
	}
}

func TestUpsert_EmbedError(t *testing.T) {
	mq := &mockQuerier{}
	store := testStore(mq, &mockEmbedder{embedErr: errors.New("quota exhausted")})

	err := store.Upsert(context.Background(), Entry{
		Collection: CollectionFAQ,
		Content:    "Standard shipping takes 3-5 business days.",
	})
	if err == nil {
		t.Fatal("Upsert() expected error, got nil")
	}
	if mq.execCalls != 0 {
		t.Errorf("exec calls = %d, want 0 after embed failure", mq.execCalls)
	}
}

func TestUpsert_ExecError(t *testing.T) {
	mq := &mockQuerier{execErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	err := store.Upsert(context.Background(), Entry{
		Collection: CollectionFAQ,
		Content:    "Standard shipping takes 3-5 business days.",
	})
	if !errors.Is(err, errPGDown) {
		t.Errorf("Upsert() error = %v, want wrapped %v", err, errPGDown)
	}
}

func TestUpsert_NullableFields(t *testing.T) {
	mq := &mockQuerier{}
	store := testStore(mq, &mockEmbedder{})

	err := store.Upsert(context.Background(), Entry{
		Collection: CollectionBusinessRule,
		Category:   "shipping",
		Content:    "Orders over $500 require a signature on delivery.",
		AppliesTo:  "orders >= $500",
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if mq.execCalls != 1 {
		t.Fatalf("exec calls = %d, want 1", mq.execCalls)
	}

	// args: collection, category, content, applies_to, exceptions, source_url, embedding
	if len(mq.lastArgs) != 7 {
		t.Fatalf("exec args = %d, want 7", len(mq.lastArgs))
	}
	appliesTo, ok := mq.lastArgs[3].(*string)
	if !ok || appliesTo == nil || *appliesTo != "orders >= $500" {
		t.Errorf("applies_to arg = %v, want pointer to %q", mq.lastArgs[3], "orders >= $500")
	}
	if exceptions, ok := mq.lastArgs[4].(*string); !ok || exceptions != nil {
		t.Errorf("exceptions arg = %v, want nil pointer for empty field", mq.lastArgs[4])
	}
	if sourceURL, ok := mq.lastArgs[5].(*string); !ok || sourceURL != nil {
		t.Errorf("source_url arg = %v, want nil pointer for empty field", mq.lastArgs[5])
	}
}

func TestUpsert_TrimsContent(t *testing.T) {
	mq := &mockQuerier{}
	store := testStore(mq, &mockEmbedder{})

	err := store.Upsert(context.Background(), Entry{
		Collection: CollectionFAQ,
		Content:    "  Gift cards never expire.  \n",
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if got := mq.lastArgs[2]; got != "Gift cards never expire." {
		t.Errorf("content arg = %q, want trimmed", got)
	}
}

// ============================================================================
// Count / DeleteBySource Tests
// ============================================================================

func TestCount(t *testing.T) {
	mq := &mockQuerier{row: staticRow{count: 42}}
	store := testStore(mq, &mockEmbedder{})

	n, err := store.Count(context.Background(), CollectionFAQ)
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("Count() = %d, want 42", n)
	}
}

func TestCount_InvalidCollection(t *testing.T) {
	store := testStore(&mockQuerier{}, &mockEmbedder{})

	_, err := store.Count(context.Background(), Collection(""))
	if err == nil {
		t.Fatal("Count(invalid) expected error, got nil")
	}
}

func TestCount_QueryError(t *testing.T) {
	mq := &mockQuerier{row: staticRow{err: errPGDown}}
	store := testStore(mq, &mockEmbedder{})

	_, err := store.Count(context.Background(), CollectionFAQ)
	if !errors.Is(err, errPGDown) {
		t.Errorf("Count() error = %v, want wrapped %v", err, errPGDown)
	}
}

func TestDeleteBySource_RequiresURL(t *testing.T) {
	mq := &mockQuerier{}
	store := testStore(mq, &mockEmbedder{})

	_, err := store.DeleteBySource(context.Background(), "")
	if err == nil {
		t.Fatal("DeleteBySource(\"\") expected error, got nil")
	}
	if mq.execCalls != 0 {
		t.Errorf("exec calls = %d, want 0", mq.execCalls)
	}
}

func TestDeleteBySource_ExecError(t *testing.T) {
	mq := &mockQuerier{execErr: errPGDown}
	store := testStore(mq, &mockEmbedder{})

	_, err := store.DeleteBySource(context.Background(), "https://shop.example.com/help/returns")
	if !errors.Is(err, errPGDown) {
		t.Errorf("DeleteBySource() error = %v, want wrapped %v", err, errPGDown)
	}
}

// ============================================================================
// Collection Tests
// ============================================================================

func TestCollectionValid(t *testing.T) {
	tests := []struct {
		collection Collection
		want       bool
	}{
		{CollectionFAQ, true},
		{CollectionBusinessRule, true},
		{Collection(""), false},
		{Collection("FAQ"), false},
		{Collection("catalog"), false},
	}

	for _, tt := range tests {
		if got := tt.collection.Valid(); got != tt.want {
			t.Errorf("Collection(%q).Valid() = %v, want %v", tt.collection, got, tt.want)
		}
	}
}

func TestCollections(t *testing.T) {
	got := Collections()
	if len(got) != 2 {
		t.Fatalf("Collections() len = %d, want 2", len(got))
	}
	for _, c := range got {
		if !c.Valid() {
			t.Errorf("Collections() contains invalid %q", c)
		}
	}
}
