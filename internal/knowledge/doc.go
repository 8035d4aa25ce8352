// Package knowledge provides semantic search over the storefront corpus.
//
// The package manages a vector index with a PostgreSQL + pgvector backend,
// split into two collections:
//
//   - faq: help-center articles (shipping, returns, accounts, payments)
//   - business_rule: operational rules with structured applicability
//
// Entries are embedded through a Genkit embedder on write; searches embed
// the query and rank by cosine similarity.
//
// # Search Flow
//
//	Query text
//	     |
//	     v
//	Query Embedding (Genkit ai.Embedder, truncated to VectorDimension)
//	     |
//	     v
//	Vector Similarity (embedding <=> query, cosine)
//	     |
//	     v
//	Threshold Filter (score >= threshold, inclusive)
//	     |
//	     v
//	Ranked Matches (score descending)
//
// A match's Score is 1 minus the cosine distance. Scores are produced once
// by the database and carried as-is; callers compare and threshold them but
// never recompute.
//
// # Operations
//
//	Search(ctx, collection, query, opts)  - scored matches from one collection
//	HybridSearch(ctx, query, limit)       - both collections merged, best first
//	Upsert(ctx, entry)                    - embed and store, idempotent per (collection, content)
//	Count(ctx, collection)                - corpus size, used by ingest reports
//	DeleteBySource(ctx, url)              - drop stale chunks before re-ingest
//
// Failures that leave the index unreachable (embedding errors, connection
// loss, query errors) wrap ErrUnavailable so the routing planner can degrade
// to a transactional-only answer instead of failing the whole turn.
package knowledge
