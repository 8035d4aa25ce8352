// Package compose merges knowledge snippets and tool results into the
// final answer: a natural-language message plus an optional list of typed
// UI component descriptors the storefront front end renders. The component
// vocabulary is a closed tagged union, so every output shape is
// enumerable in tests.
package compose

import (
	"fmt"
	"strings"

	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/route"
	"github.com/koopa0/kiosk/internal/storefront"
)

// Component type tags. Closed vocabulary: the composer emits nothing else.
const (
	TypeCard        = "card"
	TypeList        = "list"
	TypeForm        = "form"
	TypeButtonGroup = "button-group"
	TypeText        = "text"
)

// Layout hints for the front end.
const (
	LayoutText  = "text"
	LayoutCards = "cards"
	LayoutMixed = "mixed"
)

// Component is one renderable UI descriptor. The core never executes
// actions; it only names them for the front end.
type Component struct {
	Type    string         `json:"type"`
	Props   map[string]any `json:"props"`
	Actions []Action       `json:"actions,omitempty"`
}

// Action is a bounded child action on a component.
type Action struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is the composed turn output.
type Response struct {
	Message      string
	UI           []Component
	Layout       string
	StrategyUsed string
}

// clarification is the terminal fallback when nothing matched and nothing
// executed.
const clarification = "I'm not sure I caught that. Could you rephrase, or " +
	"share a detail like an order number or a full shipping address?"

// Compose builds the response for one executed plan. Knowledge text
// precedes tool-derived cards; cards follow the plan's declaration order;
// failed and skipped calls degrade to an apologetic clause naming what
// couldn't be done, never silently dropped.
func Compose(plan execute.Plan, results []execute.ToolResult, matches []knowledge.Match) Response {
	resp := Response{StrategyUsed: plan.Tag, Layout: LayoutText}

	var parts []string
	if text := knowledgeText(plan.Tag, matches); text != "" {
		parts = append(parts, text)
		if card := knowledgeCard(matches); card != nil {
			resp.UI = append(resp.UI, *card)
		}
	}

	for _, r := range results {
		line, cards := renderResult(r)
		if line != "" {
			parts = append(parts, line)
		}
		resp.UI = append(resp.UI, cards...)
	}

	if len(parts) == 0 {
		resp.Message = clarification
		return resp
	}

	resp.Message = strings.Join(parts, "\n\n")
	switch {
	case len(resp.UI) == 0:
		resp.Layout = LayoutText
	case len(matches) > 0:
		resp.Layout = LayoutMixed
	default:
		resp.Layout = LayoutCards
	}
	return resp
}

// knowledgeText picks the message contribution from retrieved knowledge.
// knowledge_only answers derive solely from the top match; hybrid answers
// lead with the top match before the tool summaries.
func knowledgeText(tag string, matches []knowledge.Match) string {
	if len(matches) == 0 {
		return ""
	}
	if tag == route.TagTransactionalFallback && matches[0].Score < knowledge.DefaultScoreThreshold {
		return ""
	}
	return strings.TrimSpace(matches[0].Content)
}

// knowledgeCard surfaces a business rule's structured fields when the top
// match carries any; plain FAQ text gets no card.
func knowledgeCard(matches []knowledge.Match) *Component {
	top := matches[0]
	if top.AppliesTo == "" && top.Exceptions == "" {
		return nil
	}
	props := map[string]any{
		"title": top.Category,
		"body":  top.Content,
	}
	if top.AppliesTo != "" {
		props["applies_to"] = top.AppliesTo
	}
	if top.Exceptions != "" {
		props["exceptions"] = top.Exceptions
	}
	return &Component{Type: TypeCard, Props: props}
}

// renderResult turns one settled tool call into its message clause and
// component descriptors.
func renderResult(r execute.ToolResult) (string, []Component) {
	switch r.Status {
	case execute.StatusFailed:
		return failureLine(r), nil
	case execute.StatusSkipped:
		return fmt.Sprintf("I didn't attempt to %s because an earlier step didn't complete.", toolVerb(r.Tool)), nil
	}

	switch payload := r.Payload.(type) {
	case []storefront.Product:
		return renderProducts(payload)
	case []storefront.Order:
		return renderOrders(payload)
	case *storefront.Order:
		return renderOrder(r.Tool, payload)
	case *storefront.Customer:
		if payload == nil {
			return "", nil
		}
		line := fmt.Sprintf("You're signed in as %s (%s).", payload.Name, payload.Email)
		if payload.Tier != "" {
			line = fmt.Sprintf("You're signed in as %s, a %s member.", payload.Name, payload.Tier)
		}
		return line, nil
	case []storefront.Address:
		return renderAddresses(payload)
	case *storefront.Address:
		if payload == nil {
			return "", nil
		}
		return fmt.Sprintf("Your default address is now %s, %s.", payload.Line1, payload.City), nil
	case *storefront.GiftCard:
		return renderGiftCard(payload)
	default:
		// A tool the composer has no rendering for still acknowledges.
		return fmt.Sprintf("Done: %s completed.", toolVerb(r.Tool)), nil
	}
}

func renderProducts(products []storefront.Product) (string, []Component) {
	if len(products) == 0 {
		return "I couldn't find any products matching that. Try different terms or a higher price limit.", nil
	}

	names := make([]string, len(products))
	cards := make([]Component, len(products))
	for i, p := range products {
		names[i] = fmt.Sprintf("%s ($%.2f)", p.Name, p.Price)
		cards[i] = productCard(p)
	}
	return fmt.Sprintf("I found %d products: %s.", len(products), strings.Join(names, ", ")), cards
}

func productCard(p storefront.Product) Component {
	props := map[string]any{
		"title":    p.Name,
		"price":    fmt.Sprintf("%.2f", p.Price),
		"in_stock": p.InStock,
	}
	if p.Description != "" {
		props["body"] = p.Description
	}
	if p.Category != "" {
		props["category"] = p.Category
	}
	if p.ImageURL != "" {
		props["image_url"] = p.ImageURL
	}
	return Component{
		Type:  TypeCard,
		Props: props,
		Actions: []Action{
			{ID: "view", Payload: map[string]any{"product_id": p.ID}},
			{ID: "add_to_cart", Payload: map[string]any{"product_id": p.ID}},
		},
	}
}

func renderOrders(orders []storefront.Order) (string, []Component) {
	if len(orders) == 0 {
		return "You don't have any orders yet.", nil
	}

	lines := make([]string, len(orders))
	cards := make([]Component, len(orders))
	for i, o := range orders {
		lines[i] = fmt.Sprintf("#%s — %s, $%.2f", o.ID, o.Status, o.Total)
		cards[i] = orderCard(o)
	}
	return fmt.Sprintf("You have %d orders: %s.", len(orders), strings.Join(lines, "; ")), cards
}

func renderOrder(tool string, o *storefront.Order) (string, []Component) {
	if o == nil {
		return "", nil
	}
	card := orderCard(*o)
	switch tool {
	case storefront.ToolCancelOrder:
		return fmt.Sprintf("Order #%s has been cancelled. $%.2f will be refunded to your original payment method.", o.ID, o.Total), []Component{card}
	case storefront.ToolReturnOrder:
		return fmt.Sprintf("I've started a return for order #%s. You'll get instructions by email.", o.ID), []Component{card}
	case storefront.ToolCreateOrder:
		return fmt.Sprintf("I've placed your new order #%s for $%.2f.", o.ID, o.Total), []Component{card}
	default:
		return fmt.Sprintf("Order #%s is %s, total $%.2f.", o.ID, o.Status, o.Total), []Component{card}
	}
}

func orderCard(o storefront.Order) Component {
	return Component{
		Type: TypeCard,
		Props: map[string]any{
			"title":  "Order #" + o.ID,
			"status": o.Status,
			"total":  fmt.Sprintf("%.2f", o.Total),
			"items":  len(o.Items),
		},
		Actions: []Action{
			{ID: "view", Payload: map[string]any{"order_id": o.ID}},
		},
	}
}

func renderAddresses(addresses []storefront.Address) (string, []Component) {
	if len(addresses) == 0 {
		return "You don't have any saved addresses yet.", nil
	}

	items := make([]map[string]any, len(addresses))
	lines := make([]string, len(addresses))
	for i, a := range addresses {
		label := fmt.Sprintf("%s, %s %s", a.Line1, a.City, a.PostalCode)
		if a.IsDefault {
			label += " (default)"
		}
		lines[i] = label
		items[i] = map[string]any{
			"label":      label,
			"address_id": a.ID,
			"is_default": a.IsDefault,
		}
	}
	list := Component{
		Type:  TypeList,
		Props: map[string]any{"title": "Your addresses", "items": items},
		Actions: []Action{
			{ID: "set_default"},
		},
	}
	return fmt.Sprintf("You have %d saved addresses: %s.", len(addresses), strings.Join(lines, "; ")), []Component{list}
}

func renderGiftCard(gc *storefront.GiftCard) (string, []Component) {
	if gc == nil {
		return "", nil
	}
	card := Component{
		Type: TypeCard,
		Props: map[string]any{
			"title":   "Gift card",
			"code":    gc.Code,
			"balance": fmt.Sprintf("%.2f", gc.Balance),
		},
		Actions: []Action{
			{ID: "view", Payload: map[string]any{"gift_card_id": gc.ID}},
		},
	}
	return fmt.Sprintf("I've issued a $%.2f gift card. The code is %s.", gc.Balance, gc.Code), []Component{card}
}

// failureLine apologizes for one failed call, naming the operation in plain
// language. Timeouts read as temporary unavailability.
func failureLine(r execute.ToolResult) string {
	if r.Reason == execute.ReasonTimeout {
		return fmt.Sprintf("I'm sorry, %s is temporarily unavailable right now. Please try again in a moment.", toolNoun(r.Tool))
	}
	return fmt.Sprintf("I'm sorry, I couldn't %s right now.", toolVerb(r.Tool))
}

// toolNoun names the thing a tool provides, for unavailability wording.
func toolNoun(tool string) string {
	switch tool {
	case storefront.ToolSearchProducts:
		return "product search"
	case storefront.ToolGetCustomer:
		return "your account information"
	case storefront.ToolGetCustomerOrders:
		return "your order history"
	case storefront.ToolGetAddresses:
		return "your address book"
	default:
		return "that service"
	}
}

// toolVerb names the action a tool performs, for failure and skip wording.
func toolVerb(tool string) string {
	switch tool {
	case storefront.ToolSearchProducts:
		return "search the catalog"
	case storefront.ToolGetCustomer:
		return "look up your account"
	case storefront.ToolGetCustomerOrders:
		return "look up your orders"
	case storefront.ToolCreateOrder:
		return "place the order"
	case storefront.ToolCancelOrder:
		return "cancel the order"
	case storefront.ToolReturnOrder:
		return "start the return"
	case storefront.ToolIssueGiftCard:
		return "issue the gift card"
	case storefront.ToolGetAddresses:
		return "look up your addresses"
	case storefront.ToolSetDefaultAddress:
		return "update your default address"
	default:
		return "complete that step"
	}
}
