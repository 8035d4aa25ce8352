//go:build integration

package testutil

import (
	"context"
	"testing"
)

// TestSetupTestDB_Integration verifies that SetupTestDB creates a fully functional
// PostgreSQL container with pgvector extension and required schema.
//
// This test validates the test infrastructure itself, ensuring:
//   - Docker container starts successfully
//   - PostgreSQL is accessible
//   - pgvector extension is installed
//   - Database migrations run successfully
//   - All required tables are created
//
// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB_Integration(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := db.Pool.Ping(ctx); err != nil {
		t.Fatalf("Pool.Ping() unexpected error: %v", err)
	}

	// Verify pgvector extension is installed
	var hasExtension bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasExtension)
	if err != nil {
		t.Fatalf("QueryRow(vector extension check) unexpected error: %v", err)
	}
	if !hasExtension {
		t.Error("pgvector extension installed = false, want true")
	}

	// Verify all required tables exist
	tables := []string{"knowledge_entries", "sessions", "session_turns"}
	for _, table := range tables {
		var exists bool
		err = db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		if err != nil {
			t.Fatalf("QueryRow(table %q check) unexpected error: %v", table, err)
		}
		if !exists {
			t.Errorf("table %q exists = false, want true", table)
		}
	}

	// CleanTables should leave the schema usable
	CleanTables(t, db.Pool)
	var count int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM knowledge_entries").Scan(&count); err != nil {
		t.Fatalf("QueryRow(count after clean) unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("knowledge_entries count after CleanTables = %d, want 0", count)
	}
}
