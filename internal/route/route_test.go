package route

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kiosk/internal/classify"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/storefront"
	"github.com/koopa0/kiosk/internal/strategy"
)

// fakeIndex scripts knowledge results per call.
type fakeIndex struct {
	matches []knowledge.Match
	err     error
	queries []string
}

func (f *fakeIndex) Search(ctx context.Context, collection knowledge.Collection, query string, opts ...knowledge.SearchOption) ([]knowledge.Match, error) {
	f.queries = append(f.queries, fmt.Sprintf("%s:%s", collection, query))
	var out []knowledge.Match
	for _, m := range f.matches {
		if m.Collection == collection {
			out = append(out, m)
		}
	}
	return out, f.err
}

func (f *fakeIndex) HybridSearch(ctx context.Context, query string, limit int) ([]knowledge.Match, error) {
	f.queries = append(f.queries, "hybrid:"+query)
	return f.matches, f.err
}

// fakeEngine returns a scripted strategy selection.
type fakeEngine struct {
	selected *strategy.Strategy
	steps    []strategy.ActionStep
	seen     []strategy.RuleContext
}

func (f *fakeEngine) Evaluate(rctx strategy.RuleContext) *strategy.Strategy {
	f.seen = append(f.seen, rctx)
	return f.selected
}

func (f *fakeEngine) Expand(s *strategy.Strategy, rctx strategy.RuleContext) []strategy.ActionStep {
	return f.steps
}

type fakeOrders struct {
	orders []storefront.Order
	err    error
}

func (f *fakeOrders) GetCustomerOrders(ctx context.Context, customerID string) ([]storefront.Order, error) {
	return f.orders, f.err
}

func newSession(customerID string) *session.Session {
	return &session.Session{ID: uuid.New(), CustomerID: customerID, Slots: map[string]string{}}
}

func newPlanner(t *testing.T, index KnowledgeIndex, engine RuleEngine, orders OrderSource) *Planner {
	t.Helper()
	p, err := NewPlanner(index, engine, orders, Config{}, nil)
	require.NoError(t, err)
	return p
}

func TestNewPlanner_RequiresIndex(t *testing.T) {
	t.Parallel()
	_, err := NewPlanner(nil, nil, nil, Config{}, nil)
	require.Error(t, err)
}

func TestPlan_TransactionalProductSearch(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{}
	p := newPlanner(t, index, nil, nil)
	sess := newSession("cust-1")

	cls := classify.Classify("Find laptops under $1000", sess.Snapshot())
	require.Equal(t, classify.CategoryTransactional, cls.Category)

	plan := p.Plan(context.Background(), "Find laptops under $1000", cls, sess)

	assert.Equal(t, TagTransactionalOnly, plan.Tag)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, storefront.ToolSearchProducts, plan.Calls[0].Tool)
	assert.Equal(t, "laptops", plan.Calls[0].Params["query"])
	assert.Equal(t, 1000.0, plan.Calls[0].Params["maxPrice"])
	assert.Empty(t, index.queries, "transactional branch must not consult knowledge")
	assert.Equal(t, "1000", sess.Slot(session.SlotMaxPrice))
}

func TestPlan_FAQKnowledgeOnly(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{matches: []knowledge.Match{
		{Collection: knowledge.CollectionFAQ, Content: "Returns are accepted within 30 days.", Score: 0.91},
	}}
	p := newPlanner(t, index, nil, nil)
	sess := newSession("cust-1")

	cls := classify.Classify("What's your return policy?", sess.Snapshot())
	require.Equal(t, classify.CategoryFAQ, cls.Category)
	assert.Greater(t, cls.Confidence, 0.7)

	plan := p.Plan(context.Background(), "What's your return policy?", cls, sess)

	assert.Equal(t, TagKnowledgeOnly, plan.Tag)
	assert.Empty(t, plan.Calls)
	require.Len(t, plan.Matches, 1)
	assert.Equal(t, "Returns are accepted within 30 days.", plan.Matches[0].Content)
}

func TestPlan_FAQLowScoreFallsBack(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{matches: []knowledge.Match{
		{Collection: knowledge.CollectionFAQ, Content: "weak", Score: 0.56},
	}}
	p := newPlanner(t, index, nil, nil)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "what is the policy",
		classify.Result{Category: classify.CategoryFAQ, Confidence: 0.5}, sess)

	assert.Equal(t, TagTransactionalFallback, plan.Tag)
	assert.Len(t, plan.Matches, 1, "weak matches still ride along for the composer")
}

func TestPlan_KnowledgeUnavailableDegrades(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{err: fmt.Errorf("%w: connection refused", knowledge.ErrUnavailable)}
	p := newPlanner(t, index, nil, nil)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "What's your return policy?",
		classify.Result{Category: classify.CategoryFAQ, Confidence: 0.9}, sess)

	assert.Equal(t, TagTransactionalFallback, plan.Tag)
	assert.Empty(t, plan.Matches)
}

func TestPlan_RuleDrivenStrategySelected(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{}
	engine := &fakeEngine{
		selected: &strategy.Strategy{ID: "cancel-reorder-giftcard", Name: "Cancel and Reorder with Gift Card"},
		steps: []strategy.ActionStep{
			{Tool: storefront.ToolCancelOrder, Params: map[string]any{"orderId": "ord-9"}, DependsOn: -1},
			{Tool: storefront.ToolIssueGiftCard, Params: map[string]any{"amount": 129.99}, DependsOn: 0},
			{Tool: storefront.ToolCreateOrder, Params: map[string]any{"customerId": "cust-1"}, DependsOn: 1},
		},
	}
	orders := &fakeOrders{orders: []storefront.Order{{
		ID: "ord-9", CustomerID: "cust-1", Status: storefront.OrderStatusShipped,
		Total: 129.99, CreatedAt: time.Now().Add(-48 * time.Hour),
	}}}
	p := newPlanner(t, index, engine, orders)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "Can I change the delivery address on my shipped order?",
		classify.Result{Category: classify.CategoryBusinessRule, Confidence: 0.8}, sess)

	assert.Equal(t, TagRuleDriven, plan.Tag)
	assert.Equal(t, "cancel-reorder-giftcard", plan.StrategyID)
	require.Len(t, plan.Calls, 3)
	assert.Equal(t, storefront.ToolCancelOrder, plan.Calls[0].Tool)
	assert.Equal(t, storefront.ToolIssueGiftCard, plan.Calls[1].Tool)
	assert.Equal(t, storefront.ToolCreateOrder, plan.Calls[2].Tool)
	assert.Equal(t, 1, plan.Calls[2].DependsOn)

	// Rule context was derived from the session and the referenced order.
	require.Len(t, engine.seen, 1)
	rctx := engine.seen[0]
	assert.Equal(t, storefront.OrderStatusShipped, rctx.OrderStatus)
	assert.Equal(t, "address", rctx.RequestedChange)
	assert.Equal(t, "ord-9", rctx.OrderID)
	assert.InDelta(t, 48*time.Hour, rctx.OrderAge, float64(time.Hour))
}

func TestPlan_RuleDrivenNoStrategyFallsBackToKnowledge(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{matches: []knowledge.Match{
		{Collection: knowledge.CollectionBusinessRule, Content: "Shipped orders cannot change address.", Score: 0.8},
	}}
	p := newPlanner(t, index, &fakeEngine{}, &fakeOrders{})
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "am I eligible to change my delivery address",
		classify.Result{Category: classify.CategoryBusinessRule, Confidence: 0.8}, sess)

	assert.Equal(t, TagKnowledgeOnly, plan.Tag)
	assert.Empty(t, plan.Calls)
	require.Len(t, plan.Matches, 1)
	assert.Equal(t, knowledge.CollectionBusinessRule, plan.Matches[0].Collection)
}

func TestPlan_RuleDrivenNothingMatchesClarifies(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, &fakeEngine{}, &fakeOrders{})
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "am I eligible for the thing",
		classify.Result{Category: classify.CategoryBusinessRule, Confidence: 0.6}, sess)

	assert.Equal(t, TagTransactionalFallback, plan.Tag)
	assert.Empty(t, plan.Calls)
}

func TestPlan_MixedHybrid(t *testing.T) {
	t.Parallel()
	index := &fakeIndex{matches: []knowledge.Match{
		{Collection: knowledge.CollectionFAQ, Content: "Returns are accepted within 30 days.", Score: 0.85},
	}}
	p := newPlanner(t, index, nil, nil)
	sess := newSession("cust-1")

	cls := classify.Classify("Can I return this MacBook?", sess.Snapshot())
	require.Equal(t, classify.CategoryMixed, cls.Category)

	plan := p.Plan(context.Background(), "Can I return this MacBook?", cls, sess)

	assert.Equal(t, TagHybrid, plan.Tag)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, storefront.ToolSearchProducts, plan.Calls[0].Tool)
	assert.Equal(t, "macbook", plan.Calls[0].Params["query"])
	require.Len(t, plan.Matches, 1)
}

func TestPlan_FallbackClarifiesWhenNothingMaps(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, nil, nil)
	sess := newSession("")

	plan := p.Plan(context.Background(), "???",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.2}, sess)

	assert.Equal(t, TagTransactionalFallback, plan.Tag)
	assert.Empty(t, plan.Calls)
}

// Totality: every category including unknown strings resolves to exactly
// one of the five tags.
func TestPlan_Totality(t *testing.T) {
	t.Parallel()
	valid := map[string]bool{
		TagTransactionalOnly:     true,
		TagKnowledgeOnly:         true,
		TagRuleDriven:            true,
		TagHybrid:                true,
		TagTransactionalFallback: true,
	}
	utterances := []string{
		"", "?", "Find laptops under $1000", "What's your return policy?",
		"cancel order #A-1234", "am I eligible for free shipping",
		"Can I return this MacBook?", "asdf qwerty", "track my package",
		"issue a $50 gift card", "show my addresses",
	}
	categories := []classify.Category{
		classify.CategoryFAQ, classify.CategoryBusinessRule,
		classify.CategoryTransactional, classify.CategoryMixed, "BOGUS",
	}

	p := newPlanner(t, &fakeIndex{}, &fakeEngine{}, &fakeOrders{})
	for _, utt := range utterances {
		for _, cat := range categories {
			sess := newSession("cust-1")
			plan := p.Plan(context.Background(), utt, classify.Result{Category: cat, Confidence: 0.5}, sess)
			assert.True(t, valid[plan.Tag], "utterance %q category %s produced tag %q", utt, cat, plan.Tag)
			if plan.Tag == TagKnowledgeOnly {
				assert.Empty(t, plan.Calls)
			}
		}
	}
}

func TestPlan_CancelWithOrderRef(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, nil, nil)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "please cancel order #A-1234",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.9}, sess)

	assert.Equal(t, TagTransactionalOnly, plan.Tag)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, storefront.ToolCancelOrder, plan.Calls[0].Tool)
	assert.Equal(t, "a-1234", plan.Calls[0].Params["orderId"])
	assert.Equal(t, "a-1234", sess.Slot(session.SlotLastOrderID))
}

func TestPlan_CancelWithoutRefListsOrders(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, nil, nil)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "I want to cancel my order",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.9}, sess)

	require.Len(t, plan.Calls, 1)
	assert.Equal(t, storefront.ToolGetCustomerOrders, plan.Calls[0].Tool)
	assert.Equal(t, "cust-1", plan.Calls[0].Params["customerId"])
}

func TestPlan_GiftCardAmount(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, nil, nil)
	sess := newSession("cust-1")

	plan := p.Plan(context.Background(), "buy a $50 gift card",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.9}, sess)

	require.Len(t, plan.Calls, 1)
	assert.Equal(t, storefront.ToolIssueGiftCard, plan.Calls[0].Tool)
	assert.Equal(t, 50.0, plan.Calls[0].Params["amount"])
}

func TestPlan_SlotExtractionNeverErases(t *testing.T) {
	t.Parallel()
	p := newPlanner(t, &fakeIndex{}, nil, nil)
	sess := newSession("cust-1")
	sess.SetSlot(session.SlotPendingAddress, "1 Existing Way")

	p.Plan(context.Background(), "show my orders",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.9}, sess)
	assert.Equal(t, "1 Existing Way", sess.Slot(session.SlotPendingAddress))

	p.Plan(context.Background(), "ship it to 221B Baker Street",
		classify.Result{Category: classify.CategoryTransactional, Confidence: 0.9}, sess)
	assert.Equal(t, "221B Baker Street", sess.Slot(session.SlotPendingAddress))
}

func TestReferencedOrder_LookupFailureIsConservative(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	orders := &fakeOrders{err: errors.New("storefront down")}
	p := newPlanner(t, &fakeIndex{}, engine, orders)
	sess := newSession("cust-1")

	p.Plan(context.Background(), "can I change my shipping address",
		classify.Result{Category: classify.CategoryBusinessRule, Confidence: 0.8}, sess)

	require.Len(t, engine.seen, 1)
	assert.Empty(t, engine.seen[0].OrderStatus, "missing order leaves status unknown")
}
