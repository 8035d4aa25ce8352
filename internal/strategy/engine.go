package strategy

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Engine serves the current strategy snapshot. The snapshot is immutable
// once loaded; Reload builds a replacement from the document and swaps it
// in atomically, so readers never observe a half-loaded document and a
// failed reload leaves the prior snapshot serving.
type Engine struct {
	path   string
	known  map[string]bool
	logger *slog.Logger

	mu   sync.RWMutex
	snap []Strategy
}

// NewEngine loads the document at path and validates every action against
// knownTools, the gateway's registry. Any ErrConfiguration here should
// halt startup.
func NewEngine(path string, knownTools []string, logger *slog.Logger) (*Engine, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: document path is required", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	known := make(map[string]bool, len(knownTools))
	for _, t := range knownTools {
		known[t] = true
	}

	strategies, err := loadDocument(path, known, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("strategy document loaded",
		"path", path,
		"strategies", len(strategies))

	return &Engine{path: path, known: known, logger: logger, snap: strategies}, nil
}

// Evaluate returns the single best strategy for the context, or nil when
// none qualifies. A strategy qualifies only if every condition holds;
// among qualifiers the longest condition list wins and ties fall to
// declaration order. Repeated calls with the same context always agree.
func (e *Engine) Evaluate(rctx RuleContext) *Strategy {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	var best *Strategy
	for i := range snap {
		s := &snap[i]
		if !s.satisfied(rctx) {
			continue
		}
		if best == nil || len(s.conds) > len(best.conds) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	selected := *best
	return &selected
}

// Expand materializes the strategy's actions as ordered steps with
// resolved parameters. A step whose action declared needs: previous gets
// DependsOn set to the preceding index; everything else is independent.
func (e *Engine) Expand(s *Strategy, rctx RuleContext) []ActionStep {
	if s == nil {
		return nil
	}
	steps := make([]ActionStep, 0, len(s.Actions))
	for i, a := range s.Actions {
		dep := -1
		if a.Needs == "previous" {
			dep = i - 1
		}
		params := make(map[string]any, len(a.Params))
		for key, tpl := range a.Params {
			params[key] = expandTemplate(tpl, rctx)
		}
		steps = append(steps, ActionStep{
			Tool:      a.Tool,
			Params:    params,
			DependsOn: dep,
			Note:      a.Note,
		})
	}
	return steps
}

// Reload re-reads the document. On success the new snapshot replaces the
// old in one swap; on failure the error is returned and the engine keeps
// serving what it had.
func (e *Engine) Reload() error {
	strategies, err := loadDocument(e.path, e.known, e.logger)
	if err != nil {
		e.logger.Error("strategy reload failed, keeping current document",
			"path", e.path,
			"error", err)
		return err
	}

	e.mu.Lock()
	previous := len(e.snap)
	e.snap = strategies
	e.mu.Unlock()

	e.logger.Info("strategy document reloaded",
		"path", e.path,
		"strategies", len(strategies),
		"previous", previous)
	return nil
}

// Strategies returns the current snapshot for listing. Callers must treat
// the contents as read-only.
func (e *Engine) Strategies() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Strategy(nil), e.snap...)
}

// expandTemplate resolves placeholders from the context. A template that
// is exactly one non-string placeholder keeps its native type, so
// {order_total} flows as a number and {order_items} passes through
// untouched; embedded in longer text, the total formats with two
// decimals.
func expandTemplate(tpl string, rctx RuleContext) any {
	switch tpl {
	case "{order_total}":
		return rctx.OrderTotal
	case "{order_items}":
		return rctx.OrderItems
	}
	return strings.NewReplacer(
		"{order_id}", rctx.OrderID,
		"{order_status}", rctx.OrderStatus,
		"{order_total}", strconv.FormatFloat(rctx.OrderTotal, 'f', 2, 64),
		"{customer_id}", rctx.CustomerID,
		"{customer_tier}", rctx.CustomerTier,
		"{requested_change}", rctx.RequestedChange,
		"{pending_address}", rctx.PendingAddress,
	).Replace(tpl)
}
