//go:build integration

package knowledge

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/kiosk/internal/testutil"
)

// setupStoreTest creates a Store backed by real PostgreSQL but using a mock
// embedder for deterministic cosine similarity control.
func setupStoreTest(t *testing.T) (*Store, *testutil.MockEmbedder) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	g := genkit.Init(context.Background())
	mockEmb := testutil.NewMockEmbedder(int(VectorDimension))

	store, err := New(db.Pool, mockEmb.RegisterEmbedder(g), Config{TopK: 5, ScoreThreshold: 0.55}, slog.Default())
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return store, mockEmb
}

// makeVector creates a unit vector of the given dimension with a single
// non-zero component. Scores between such vectors are exact: identical
// basis vectors score 1.0, orthogonal ones score 0.
func makeVector(dim int, idx int) []float32 {
	vec := make([]float32, dim)
	vec[idx%dim] = 1.0
	return vec
}

// makeVectorWithAngle creates a vector at a given angle from the first basis
// vector. angle=0 → identical (score 1.0), angle=pi/2 → orthogonal (score 0).
func makeVectorWithAngle(dim int, angle float64) []float32 {
	vec := make([]float32, dim)
	vec[0] = float32(math.Cos(angle))
	vec[1] = float32(math.Sin(angle))
	return vec
}

func TestSearch_ThresholdBoundaryInclusive(t *testing.T) {
	store, mockEmb := setupStoreTest(t)
	ctx := context.Background()

	// Identical basis vectors make the score exactly 1.0 with no floating
	// point slack, so a threshold of 1.0 exercises the boundary itself.
	base := makeVector(int(VectorDimension), 0)
	mockEmb.SetVector("Returns are accepted within 30 days.", base)
	mockEmb.SetVector("return window", base)

	err := store.Upsert(ctx, Entry{
		Collection: CollectionFAQ,
		Category:   "returns",
		Content:    "Returns are accepted within 30 days.",
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	got, err := store.Search(ctx, CollectionFAQ, "return window", WithThreshold(1.0))
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search(threshold=1.0) len = %d, want 1 (boundary must be inclusive)", len(got))
	}
	if got[0].Score != 1.0 {
		t.Errorf("Search() score = %v, want exactly 1.0", got[0].Score)
	}
}

func TestSearch_BelowThresholdExcluded(t *testing.T) {
	store, mockEmb := setupStoreTest(t)
	ctx := context.Background()

	// Orthogonal vectors score exactly 0, well below any positive threshold.
	mockEmb.SetVector("Gift cards never expire.", makeVector(int(VectorDimension), 0))
	mockEmb.SetVector("shipping cost", makeVector(int(VectorDimension), 1))

	err := store.Upsert(ctx, Entry{Collection: CollectionFAQ, Content: "Gift cards never expire."})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	got, err := store.Search(ctx, CollectionFAQ, "shipping cost")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search(orthogonal) len = %d, want 0", len(got))
	}
}

func TestSearch_FiltersByCollection(t *testing.T) {
	store, mockEmb := setupStoreTest(t)
	ctx := context.Background()

	base := makeVector(int(VectorDimension), 0)
	mockEmb.SetVector("Standard shipping takes 3-5 business days.", base)
	mockEmb.SetVector("Orders over $500 require a signature.", base)
	mockEmb.SetVector("shipping", base)

	if err := store.Upsert(ctx, Entry{Collection: CollectionFAQ, Content: "Standard shipping takes 3-5 business days."}); err != nil {
		t.Fatalf("Upsert(faq) unexpected error: %v", err)
	}
	if err := store.Upsert(ctx, Entry{Collection: CollectionBusinessRule, Content: "Orders over $500 require a signature."}); err != nil {
		t.Fatalf("Upsert(business_rule) unexpected error: %v", err)
	}

	got, err := store.Search(ctx, CollectionFAQ, "shipping")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search(faq) len = %d, want 1", len(got))
	}
	if got[0].Collection != CollectionFAQ {
		t.Errorf("Search(faq) collection = %q, want %q", got[0].Collection, CollectionFAQ)
	}
	if got[0].Content != "Standard shipping takes 3-5 business days." {
		t.Errorf("Search(faq) content = %q, want the FAQ entry", got[0].Content)
	}
}

func TestSearch_OrdersByScoreDescAndLimits(t *testing.T) {
	store, mockEmb := setupStoreTest(t)
	ctx := context.Background()

	dim := int(VectorDimension)
	mockEmb.SetVector("query", makeVectorWithAngle(dim, 0))
	mockEmb.SetVector("closest", makeVectorWithAngle(dim, 0))
	mockEmb.SetVector("near", makeVectorWithAngle(dim, 0.4))
	mockEmb.SetVector("far", makeVectorWithAngle(dim, 0.8))

	for _, content := range []string{"far", "near", "closest"} {
		if err := store.Upsert(ctx, Entry{Collection: CollectionFAQ, Content: content}); err != nil {
			t.Fatalf("Upsert(%q) unexpected error: %v", content, err)
		}
	}

	got, err := store.Search(ctx, CollectionFAQ, "query", WithLimit(2), WithThreshold(0))
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search(limit=2) len = %d, want 2", len(got))
	}
	if got[0].Content != "closest" || got[1].Content != "near" {
		t.Errorf("Search() order = [%q, %q], want [closest, near]", got[0].Content, got[1].Content)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("Search() scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestHybridSearch_MergesBothCollections(t *testing.T) {
	store, mockEmb := setupStoreTest(t)
	ctx := context.Background()

	dim := int(VectorDimension)
	mockEmb.SetVector("can I return a gift card", makeVectorWithAngle(dim, 0))
	mockEmb.SetVector("Gift cards are refundable within 30 days.", makeVectorWithAngle(dim, 0.2))
	mockEmb.SetVector("Gift card redemptions cannot be reversed.", makeVectorWithAngle(dim, 0.4))

	if err := store.Upsert(ctx, Entry{Collection: CollectionFAQ, Content: "Gift cards are refundable within 30 days."}); err != nil {
		t.Fatalf("Upsert(faq) unexpected error: %v", err)
	}
	if err := store.Upsert(ctx, Entry{
		Collection: CollectionBusinessRule,
		Content:    "Gift card redemptions cannot be reversed.",
		AppliesTo:  "gift_card",
	}); err != nil {
		t.Fatalf("Upsert(business_rule) unexpected error: %v", err)
	}

	got, err := store.HybridSearch(ctx, "can I return a gift card", 5)
	if err != nil {
		t.Fatalf("HybridSearch() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("HybridSearch() len = %d, want 2", len(got))
	}
	if got[0].Collection != CollectionFAQ || got[1].Collection != CollectionBusinessRule {
		t.Errorf("HybridSearch() collections = [%q, %q], want [faq, business_rule]",
			got[0].Collection, got[1].Collection)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("HybridSearch() scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
	if got[1].AppliesTo != "gift_card" {
		t.Errorf("HybridSearch() business rule AppliesTo = %q, want %q", got[1].AppliesTo, "gift_card")
	}

	// Truncation keeps only the best match.
	got, err = store.HybridSearch(ctx, "can I return a gift card", 1)
	if err != nil {
		t.Fatalf("HybridSearch(limit=1) unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("HybridSearch(limit=1) len = %d, want 1", len(got))
	}
	if got[0].Collection != CollectionFAQ {
		t.Errorf("HybridSearch(limit=1) kept %q, want the higher-scoring faq match", got[0].Collection)
	}
}

func TestUpsert_IdempotentPerCollection(t *testing.T) {
	store, _ := setupStoreTest(t)
	ctx := context.Background()

	entry := Entry{
		Collection: CollectionFAQ,
		Category:   "shipping",
		Content:    "Standard shipping takes 3-5 business days.",
	}
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert() first: %v", err)
	}

	// Same content again refreshes in place.
	entry.Category = "delivery"
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert() second: %v", err)
	}

	n, err := store.Count(ctx, CollectionFAQ)
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() after re-upsert = %d, want 1", n)
	}

	// Same content in the other collection is a separate row.
	if err := store.Upsert(ctx, Entry{Collection: CollectionBusinessRule, Content: entry.Content}); err != nil {
		t.Fatalf("Upsert(other collection): %v", err)
	}
	n, err = store.Count(ctx, CollectionBusinessRule)
	if err != nil {
		t.Fatalf("Count(business_rule) unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count(business_rule) = %d, want 1", n)
	}
}

func TestDeleteBySource(t *testing.T) {
	store, _ := setupStoreTest(t)
	ctx := context.Background()

	url := "https://shop.example.com/help/returns"
	entries := []Entry{
		{Collection: CollectionFAQ, Content: "Returns chunk one.", SourceURL: url},
		{Collection: CollectionFAQ, Content: "Returns chunk two.", SourceURL: url},
		{Collection: CollectionFAQ, Content: "Unrelated article."},
	}
	for _, e := range entries {
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%q) unexpected error: %v", e.Content, err)
		}
	}

	removed, err := store.DeleteBySource(ctx, url)
	if err != nil {
		t.Fatalf("DeleteBySource() unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteBySource() removed = %d, want 2", removed)
	}

	n, err := store.Count(ctx, CollectionFAQ)
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() after delete = %d, want 1", n)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	store, _ := setupStoreTest(t)

	got, err := store.Search(context.Background(), CollectionFAQ, "anything at all")
	if err != nil {
		t.Fatalf("Search() on empty index unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() on empty index len = %d, want 0", len(got))
	}
}
