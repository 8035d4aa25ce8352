package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/route"
	"github.com/koopa0/kiosk/internal/storefront"
)

func TestCompose_KnowledgeOnly(t *testing.T) {
	t.Parallel()
	matches := []knowledge.Match{
		{Collection: knowledge.CollectionFAQ, Content: "Returns are accepted within 30 days of delivery.", Score: 0.92},
		{Collection: knowledge.CollectionFAQ, Content: "Refunds take 5-7 business days.", Score: 0.7},
	}
	plan := execute.Plan{Tag: route.TagKnowledgeOnly, Matches: matches}

	resp := Compose(plan, nil, matches)

	assert.Equal(t, route.TagKnowledgeOnly, resp.StrategyUsed)
	assert.Equal(t, "Returns are accepted within 30 days of delivery.", resp.Message)
	assert.Empty(t, resp.UI, "plain FAQ text gets no card")
	assert.Equal(t, LayoutText, resp.Layout)
}

func TestCompose_BusinessRuleStructuredFieldsGetCard(t *testing.T) {
	t.Parallel()
	matches := []knowledge.Match{{
		Collection: knowledge.CollectionBusinessRule,
		Category:   "shipping",
		Content:    "Orders over $500 require a signature on delivery.",
		AppliesTo:  "orders over $500",
		Exceptions: "gift cards",
		Score:      0.88,
	}}
	plan := execute.Plan{Tag: route.TagKnowledgeOnly, Matches: matches}

	resp := Compose(plan, nil, matches)

	require.Len(t, resp.UI, 1)
	assert.Equal(t, TypeCard, resp.UI[0].Type)
	assert.Equal(t, "orders over $500", resp.UI[0].Props["applies_to"])
	assert.Equal(t, "gift cards", resp.UI[0].Props["exceptions"])
}

func TestCompose_ProductsWithTwoDecimalPricesAndCards(t *testing.T) {
	t.Parallel()
	plan := execute.Plan{Tag: route.TagTransactionalOnly, Calls: []execute.ToolCall{
		{Tool: storefront.ToolSearchProducts, DependsOn: -1},
	}}
	results := []execute.ToolResult{{
		Tool:   storefront.ToolSearchProducts,
		Status: execute.StatusOK,
		Payload: []storefront.Product{
			{ID: "p1", Name: "UltraBook 14", Price: 999.9, InStock: true},
			{ID: "p2", Name: "AirLight 13", Price: 849, InStock: true},
		},
	}}

	resp := Compose(plan, results, nil)

	assert.Contains(t, resp.Message, "I found 2 products")
	assert.Contains(t, resp.Message, "$999.90")
	assert.Contains(t, resp.Message, "$849.00")
	require.Len(t, resp.UI, 2, "one card per product")
	for _, c := range resp.UI {
		assert.Equal(t, TypeCard, c.Type)
		ids := []string{c.Actions[0].ID, c.Actions[1].ID}
		assert.ElementsMatch(t, []string{"view", "add_to_cart"}, ids)
	}
	assert.Equal(t, LayoutCards, resp.Layout)
}

func TestCompose_HybridKnowledgePrecedesCards(t *testing.T) {
	t.Parallel()
	matches := []knowledge.Match{{
		Collection: knowledge.CollectionFAQ,
		Content:    "Returns are accepted within 30 days.",
		Score:      0.85,
	}}
	plan := execute.Plan{
		Tag:     route.TagHybrid,
		Calls:   []execute.ToolCall{{Tool: storefront.ToolSearchProducts, DependsOn: -1}},
		Matches: matches,
	}
	results := []execute.ToolResult{{
		Tool:    storefront.ToolSearchProducts,
		Status:  execute.StatusOK,
		Payload: []storefront.Product{{ID: "p1", Name: "MacBook Air", Price: 1099, InStock: true}},
	}}

	resp := Compose(plan, results, matches)

	policyIdx := strings.Index(resp.Message, "Returns are accepted")
	productIdx := strings.Index(resp.Message, "MacBook Air")
	require.GreaterOrEqual(t, policyIdx, 0)
	require.Greater(t, productIdx, policyIdx, "policy text precedes the product summary")
	require.Len(t, resp.UI, 1)
	assert.Equal(t, TypeCard, resp.UI[0].Type)
	assert.Equal(t, LayoutMixed, resp.Layout)
}

func TestCompose_FailedCallNamedNeverDropped(t *testing.T) {
	t.Parallel()
	plan := execute.Plan{Tag: route.TagTransactionalOnly, Calls: []execute.ToolCall{
		{Tool: storefront.ToolGetCustomerOrders, DependsOn: -1},
	}}
	results := []execute.ToolResult{{
		Tool:   storefront.ToolGetCustomerOrders,
		Status: execute.StatusFailed,
		Reason: execute.ReasonTimeout,
	}}

	resp := Compose(plan, results, nil)

	assert.Contains(t, resp.Message, "your order history is temporarily unavailable")
	assert.Empty(t, resp.UI)
}

func TestCompose_SkippedCallExplained(t *testing.T) {
	t.Parallel()
	plan := execute.Plan{Tag: route.TagRuleDriven}
	results := []execute.ToolResult{
		{Tool: storefront.ToolCancelOrder, Status: execute.StatusFailed, Reason: execute.ReasonError},
		{Tool: storefront.ToolIssueGiftCard, Status: execute.StatusSkipped, Reason: execute.ReasonDependency},
	}

	resp := Compose(plan, results, nil)

	assert.Contains(t, resp.Message, "couldn't cancel the order")
	assert.Contains(t, resp.Message, "didn't attempt to issue the gift card")
}

func TestCompose_OrderMutations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tool string
		want string
	}{
		{"cancel", storefront.ToolCancelOrder, "has been cancelled"},
		{"return", storefront.ToolReturnOrder, "started a return"},
		{"create", storefront.ToolCreateOrder, "placed your new order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			results := []execute.ToolResult{{
				Tool:    tt.tool,
				Status:  execute.StatusOK,
				Payload: &storefront.Order{ID: "ord-7", Status: "cancelled", Total: 129.5},
			}}
			resp := Compose(execute.Plan{Tag: route.TagRuleDriven}, results, nil)
			assert.Contains(t, resp.Message, tt.want)
			assert.Contains(t, resp.Message, "$129.50")
			require.Len(t, resp.UI, 1)
		})
	}
}

func TestCompose_GiftCard(t *testing.T) {
	t.Parallel()
	results := []execute.ToolResult{{
		Tool:    storefront.ToolIssueGiftCard,
		Status:  execute.StatusOK,
		Payload: &storefront.GiftCard{ID: "gc-1", Code: "KIOSK-50", Balance: 50},
	}}

	resp := Compose(execute.Plan{Tag: route.TagTransactionalOnly}, results, nil)

	assert.Contains(t, resp.Message, "$50.00 gift card")
	assert.Contains(t, resp.Message, "KIOSK-50")
	require.Len(t, resp.UI, 1)
}

func TestCompose_AddressListComponent(t *testing.T) {
	t.Parallel()
	results := []execute.ToolResult{{
		Tool:   storefront.ToolGetAddresses,
		Status: execute.StatusOK,
		Payload: []storefront.Address{
			{ID: "a1", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", IsDefault: true},
			{ID: "a2", Line1: "9 Side Ave", City: "Shelbyville", PostalCode: "54321"},
		},
	}}

	resp := Compose(execute.Plan{Tag: route.TagTransactionalOnly}, results, nil)

	assert.Contains(t, resp.Message, "2 saved addresses")
	assert.Contains(t, resp.Message, "(default)")
	require.Len(t, resp.UI, 1)
	assert.Equal(t, TypeList, resp.UI[0].Type)
}

func TestCompose_EmptyEverythingClarifies(t *testing.T) {
	t.Parallel()
	resp := Compose(execute.Plan{Tag: route.TagTransactionalFallback}, nil, nil)

	assert.Contains(t, resp.Message, "rephrase")
	assert.Empty(t, resp.UI)
	assert.Equal(t, route.TagTransactionalFallback, resp.StrategyUsed)
}

func TestCompose_EmptyProductResult(t *testing.T) {
	t.Parallel()
	results := []execute.ToolResult{{
		Tool:    storefront.ToolSearchProducts,
		Status:  execute.StatusOK,
		Payload: []storefront.Product{},
	}}

	resp := Compose(execute.Plan{Tag: route.TagTransactionalOnly}, results, nil)

	assert.Contains(t, resp.Message, "couldn't find any products")
	assert.Empty(t, resp.UI)
}

// Exact integer counts, never rounded or reformatted.
func TestCompose_CountsExact(t *testing.T) {
	t.Parallel()
	orders := make([]storefront.Order, 13)
	for i := range orders {
		orders[i] = storefront.Order{ID: string(rune('a' + i)), Status: "delivered", Total: 10}
	}
	results := []execute.ToolResult{{
		Tool:    storefront.ToolGetCustomerOrders,
		Status:  execute.StatusOK,
		Payload: orders,
	}}

	resp := Compose(execute.Plan{Tag: route.TagTransactionalOnly}, results, nil)
	assert.Contains(t, resp.Message, "You have 13 orders")
	assert.Len(t, resp.UI, 13)
}
