// Package route turns a classified utterance into exactly one execution
// plan. The decision table is total: every utterance resolves to one of the
// five strategy tags, and no branch issues tool calls itself — the planner
// only decides what the coordinator should run.
package route

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/koopa0/kiosk/internal/classify"
	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/storefront"
	"github.com/koopa0/kiosk/internal/strategy"
)

// Response strategy tags, in decision-table priority order.
const (
	TagTransactionalOnly     = "transactional_only"
	TagKnowledgeOnly         = "knowledge_only"
	TagRuleDriven            = "rule_driven"
	TagHybrid                = "hybrid"
	TagTransactionalFallback = "transactional_fallback"
)

// KnowledgeIndex is the slice of the knowledge store the planner consults.
type KnowledgeIndex interface {
	Search(ctx context.Context, collection knowledge.Collection, query string, opts ...knowledge.SearchOption) ([]knowledge.Match, error)
	HybridSearch(ctx context.Context, query string, limit int) ([]knowledge.Match, error)
}

// RuleEngine selects and expands declarative business strategies.
// *strategy.Engine is the production implementation.
type RuleEngine interface {
	Evaluate(rctx strategy.RuleContext) *strategy.Strategy
	Expand(s *strategy.Strategy, rctx strategy.RuleContext) []strategy.ActionStep
}

// OrderSource resolves the order a rule-driven request refers to. It is the
// one read the planner performs outside the knowledge index, and it happens
// strictly after classification.
type OrderSource interface {
	GetCustomerOrders(ctx context.Context, customerID string) ([]storefront.Order, error)
}

// Config tunes the planner.
type Config struct {
	// RouteConfidence is the minimum top-match score for answering from
	// knowledge alone (default 0.7).
	RouteConfidence float64
	// TopK is how many knowledge matches a plan carries (default 5).
	TopK int
}

// DefaultRouteConfidence gates the knowledge-only branch.
const DefaultRouteConfidence = 0.7

// Planner is the routing decision procedure.
type Planner struct {
	index  KnowledgeIndex
	engine RuleEngine
	orders OrderSource
	cfg    Config
	logger *slog.Logger
}

// NewPlanner creates a Planner. index is required; engine and orders may be
// nil, which disables the rule-driven branch's strategy consultation and
// order resolution respectively (both then fall back per the table).
func NewPlanner(index KnowledgeIndex, engine RuleEngine, orders OrderSource, cfg Config, logger *slog.Logger) (*Planner, error) {
	if index == nil {
		return nil, errors.New("route: knowledge index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RouteConfidence <= 0 || cfg.RouteConfidence > 1 {
		cfg.RouteConfidence = DefaultRouteConfidence
	}
	if cfg.TopK <= 0 {
		cfg.TopK = knowledge.DefaultTopK
	}
	return &Planner{
		index:  index,
		engine: engine,
		orders: orders,
		cfg:    cfg,
		logger: logger.With("component", "route"),
	}, nil
}

// Plan resolves the utterance to exactly one strategy tag and its tool-call
// plan. It never fails: knowledge-index unavailability degrades to the
// transactional fallback, and an utterance nothing maps to comes back as an
// empty fallback plan, which the composer renders as a clarification
// request. Extracted slot values (price caps, order references, address
// fragments) are written into sess before returning; tool calls are not
// issued here.
func (p *Planner) Plan(ctx context.Context, utterance string, cls classify.Result, sess *session.Session) execute.Plan {
	extractSlots(utterance, sess)

	var plan execute.Plan
	switch cls.Category {
	case classify.CategoryTransactional:
		plan = p.planTransactional(utterance, sess)
	case classify.CategoryFAQ:
		plan = p.planFAQ(ctx, utterance, sess)
	case classify.CategoryBusinessRule:
		plan = p.planRuleDriven(ctx, utterance, sess)
	case classify.CategoryMixed:
		plan = p.planHybrid(ctx, utterance, sess)
	default:
		plan = p.planFallback(ctx, utterance, sess)
	}

	p.logger.Debug("plan built",
		"category", cls.Category,
		"confidence", cls.Confidence,
		"tag", plan.Tag,
		"calls", len(plan.Calls),
		"matches", len(plan.Matches),
		"strategy", plan.StrategyID)
	return plan
}

// planTransactional builds the tool plan straight from the recognized
// intent, no knowledge lookup. An utterance classified TRANSACTIONAL that
// still maps to no tool drops to the fallback branch.
func (p *Planner) planTransactional(utterance string, sess *session.Session) execute.Plan {
	calls := recognize(utterance, sess)
	if len(calls) == 0 {
		return execute.Plan{Tag: TagTransactionalFallback}
	}
	return execute.Plan{Tag: TagTransactionalOnly, Calls: calls}
}

// planFAQ answers from knowledge alone when the corpus is confident enough;
// otherwise the fallback branch gets a shot at a best-effort tool plan.
func (p *Planner) planFAQ(ctx context.Context, utterance string, sess *session.Session) execute.Plan {
	matches, err := p.index.HybridSearch(ctx, utterance, p.cfg.TopK)
	if err != nil {
		p.degrade(err)
		return p.planFallback(ctx, utterance, sess)
	}
	if len(matches) > 0 && matches[0].Score > p.cfg.RouteConfidence {
		return execute.Plan{Tag: TagKnowledgeOnly, Matches: matches}
	}
	plan := p.planFallback(ctx, utterance, sess)
	plan.Matches = matches
	return plan
}

// planRuleDriven consults the strategy engine with context derived from the
// session and the referenced order. A selected strategy's expanded actions
// become the plan; no selection falls back to knowledge_only over the
// business-rule collection, and an empty corpus result leaves a bare
// fallback plan for the composer to turn into a clarification.
func (p *Planner) planRuleDriven(ctx context.Context, utterance string, sess *session.Session) execute.Plan {
	if p.engine != nil {
		rctx := p.ruleContext(ctx, utterance, sess)
		if selected := p.engine.Evaluate(rctx); selected != nil {
			steps := p.engine.Expand(selected, rctx)
			calls := make([]execute.ToolCall, len(steps))
			for i, step := range steps {
				calls[i] = execute.ToolCall{
					Tool:      step.Tool,
					Params:    step.Params,
					DependsOn: step.DependsOn,
					Note:      step.Note,
				}
			}
			return execute.Plan{Tag: TagRuleDriven, Calls: calls, StrategyID: selected.ID}
		}
	}

	matches, err := p.index.Search(ctx, knowledge.CollectionBusinessRule, utterance,
		knowledge.WithLimit(p.cfg.TopK))
	if err != nil {
		p.degrade(err)
		return p.planFallback(ctx, utterance, sess)
	}
	if len(matches) > 0 {
		return execute.Plan{Tag: TagKnowledgeOnly, Matches: matches}
	}
	return execute.Plan{Tag: TagTransactionalFallback}
}

// planHybrid pairs the transactional plan with attached knowledge matches.
func (p *Planner) planHybrid(ctx context.Context, utterance string, sess *session.Session) execute.Plan {
	calls := recognize(utterance, sess)

	matches, err := p.index.HybridSearch(ctx, utterance, p.cfg.TopK)
	if err != nil {
		p.degrade(err)
		if len(calls) == 0 {
			return execute.Plan{Tag: TagTransactionalFallback}
		}
		return execute.Plan{Tag: TagTransactionalFallback, Calls: calls}
	}

	switch {
	case len(calls) == 0 && len(matches) > 0:
		return execute.Plan{Tag: TagKnowledgeOnly, Matches: matches}
	case len(calls) == 0:
		return execute.Plan{Tag: TagTransactionalFallback}
	default:
		return execute.Plan{Tag: TagHybrid, Calls: calls, Matches: matches}
	}
}

// planFallback is the terminal branch: a best-effort tool plan from raw
// utterance keywords, degrading to an empty plan the composer renders as a
// clarification request.
func (p *Planner) planFallback(ctx context.Context, utterance string, sess *session.Session) execute.Plan {
	calls := recognize(utterance, sess)
	return execute.Plan{Tag: TagTransactionalFallback, Calls: calls}
}

// degrade logs a knowledge-index failure. The raw error never reaches the
// user; the branch that needed knowledge reroutes to the fallback.
func (p *Planner) degrade(err error) {
	if errors.Is(err, knowledge.ErrUnavailable) {
		p.logger.Warn("knowledge index unavailable, degrading to transactional fallback", "error", err)
		return
	}
	p.logger.Error("knowledge search failed", "error", err)
}

// ruleContext assembles the situational facts strategy conditions test:
// the requested change from the utterance, customer identity and slots from
// the session, and status/age/total from the referenced order. Unresolvable
// facts stay zero, and clauses over them evaluate false.
func (p *Planner) ruleContext(ctx context.Context, utterance string, sess *session.Session) strategy.RuleContext {
	rctx := strategy.RuleContext{
		CustomerID:      sess.CustomerID,
		RequestedChange: requestedChange(utterance),
		PendingAddress:  sess.Slot(session.SlotPendingAddress),
	}

	order := p.referencedOrder(ctx, utterance, sess)
	if order == nil {
		return rctx
	}
	rctx.OrderID = order.ID
	rctx.OrderStatus = order.Status
	rctx.OrderAge = time.Since(order.CreatedAt)
	rctx.OrderTotal = order.Total
	rctx.OrderItems = order.Items
	return rctx
}

// referencedOrder resolves which order the customer means: an explicit id
// in the utterance, the session's last order, or the most recent order on
// file. A lookup failure resolves to no order, which conservatively fails
// order-dependent conditions.
func (p *Planner) referencedOrder(ctx context.Context, utterance string, sess *session.Session) *storefront.Order {
	if p.orders == nil || sess.CustomerID == "" {
		return nil
	}
	orders, err := p.orders.GetCustomerOrders(ctx, sess.CustomerID)
	if err != nil {
		p.logger.Warn("order lookup for rule context failed", "error", err)
		return nil
	}
	if len(orders) == 0 {
		return nil
	}

	wanted := orderRef(utterance)
	if wanted == "" {
		wanted = sess.Slot(session.SlotLastOrderID)
	}
	if wanted != "" {
		for i := range orders {
			if orders[i].ID == wanted {
				return &orders[i]
			}
		}
	}

	newest := &orders[0]
	for i := range orders[1:] {
		if orders[i+1].CreatedAt.After(newest.CreatedAt) {
			newest = &orders[i+1]
		}
	}
	return newest
}
