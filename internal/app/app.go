// Package app assembles the kiosk pipeline from configuration.
//
// App is the dependency container shared by every entry point (serve, chat,
// mcp, ingest). Setup wires config, logging, tracing, PostgreSQL, the
// embedder, the knowledge store, sessions, the storefront gateway, the rule
// engine, and the classify/route/execute/compose pipeline behind Assistant.
// Close releases everything in reverse order.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kiosk/internal/assistant"
	"github.com/koopa0/kiosk/internal/config"
	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/route"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/storefront"
	"github.com/koopa0/kiosk/internal/strategy"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Knowledge   *knowledge.Store
	Sessions    *session.Manager
	Gateway     *storefront.Gateway
	Strategies  *strategy.Engine
	Planner     *route.Planner
	Coordinator *execute.Coordinator
	Assistant   *assistant.Assistant

	// cleanups run last-in-first-out on Close.
	cleanups []func()
}

// onClose registers a cleanup to run on Close, after any later ones.
func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases all resources in reverse initialization order. Safe to
// call on a partially initialized App and safe to call more than once.
func (a *App) Close() error {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
	return nil
}
