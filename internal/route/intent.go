package route

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/storefront"
)

// Lexical patterns for transactional intent. The classifier already decided
// the utterance is (or might be) transactional; this layer only has to pick
// the tool and its parameters.
var (
	// "$1,000", "1000 dollars", "$49.99"
	amountPattern = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)|([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*(?:dollars|usd|bucks)`)

	// "under $1000", "below 50", "less than $20", "at most 100"
	priceCapPattern = regexp.MustCompile(`(?:under|below|less than|at most|up to|cheaper than|max(?:imum)?(?: of)?)\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// "order #A-1234", "order 98765"
	orderRefPattern = regexp.MustCompile(`order\s*(?:number\s*)?#?\s*([A-Za-z0-9][A-Za-z0-9_-]{3,})`)

	// "ship it to 221B Baker Street", "my address is ..."
	addressPattern = regexp.MustCompile(`(?:ship(?: it)? to|deliver(?: it)? to|send(?: it)? to|my address is|address is|new address is)\s+(.+)$`)
)

// searchStopwords are verbs and filler the product-search query drops.
// Whatever survives is what the customer is actually shopping for.
var searchStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "any": true, "some": true,
	"i": true, "im": true, "id": true, "me": true, "my": true, "we": true,
	"please": true, "thanks": true, "hi": true, "hey": true, "hello": true,
	"find": true, "search": true, "show": true, "get": true, "give": true,
	"buy": true, "purchase": true, "order": true, "want": true, "need": true,
	"looking": true, "look": true, "like": true, "love": true, "browse": true,
	"shop": true, "shopping": true, "see": true, "list": true,
	"for": true, "to": true, "of": true, "in": true, "on": true, "with": true,
	"and": true, "or": true, "that": true, "this": true, "is": true,
	"are": true, "do": true, "does": true, "can": true, "you": true,
	"have": true, "got": true, "sell": true, "stock": true, "available": true,
	"under": true, "below": true, "less": true, "than": true, "at": true,
	"most": true, "up": true, "cheaper": true, "max": true, "maximum": true,
	"dollars": true, "usd": true, "bucks": true, "price": true, "priced": true,
	"whats": true, "what": true, "which": true, "where": true,
}

// recognize maps the utterance to a best-effort tool-call plan against the
// gateway. Precedence runs mutation intents first (cancel, return), then
// account reads, then product search, because "cancel my order for the
// laptop" is a cancellation, not a laptop search. Returns nil when nothing
// maps; the caller decides whether that means fallback or clarification.
func recognize(utterance string, sess *session.Session) []execute.ToolCall {
	lower := strings.ToLower(utterance)
	norm := normalizeWords(lower)

	orderID := orderRef(utterance)
	if orderID == "" {
		orderID = sess.Slot(session.SlotLastOrderID)
	}

	switch {
	case hasAny(norm, "cancel", "cancellation"):
		if orderID != "" {
			return []execute.ToolCall{{
				Tool:      storefront.ToolCancelOrder,
				Params:    map[string]any{"orderId": orderID},
				DependsOn: -1,
			}}
		}
		// No resolvable order reference: surface the order list so the
		// next turn can name one.
		return customerCall(sess, storefront.ToolGetCustomerOrders)

	case hasAny(norm, "return", "refund", "exchange") && hasAny(norm, "order", "it", "this", "item", "purchase") || hasAny(norm, "return", "refund") && len(productTerms(norm)) > 0:
		if orderID != "" {
			return []execute.ToolCall{{
				Tool:      storefront.ToolReturnOrder,
				Params:    map[string]any{"orderId": orderID, "reason": "customer request"},
				DependsOn: -1,
			}}
		}
		// No order reference, but a named product resolves the item the
		// customer means; otherwise surface the order list.
		if terms := productTerms(norm); len(terms) > 0 {
			return []execute.ToolCall{{
				Tool:      storefront.ToolSearchProducts,
				Params:    map[string]any{"query": strings.Join(terms, " ")},
				DependsOn: -1,
			}}
		}
		return customerCall(sess, storefront.ToolGetCustomerOrders)

	case hasAny(norm, "gift") && hasAny(norm, "card", "cards", "certificate"):
		if amount := firstAmount(lower); amount > 0 {
			return []execute.ToolCall{{
				Tool:      storefront.ToolIssueGiftCard,
				Params:    map[string]any{"amount": amount},
				DependsOn: -1,
			}}
		}
		return nil

	case hasAny(norm, "address", "addresses"):
		if hasAny(norm, "default", "primary", "main") {
			if id := sess.Slot("default_address_id"); id != "" {
				return []execute.ToolCall{{
					Tool:      storefront.ToolSetDefaultAddress,
					Params:    map[string]any{"customerId": sess.CustomerID, "addressId": id},
					DependsOn: -1,
				}}
			}
		}
		return customerCall(sess, storefront.ToolGetAddresses)

	case hasAny(norm, "orders", "order", "delivery", "package", "shipment", "track", "tracking", "status", "history") &&
		hasAny(norm, "my", "order", "orders", "track", "tracking", "where", "status", "history", "recent", "last"):
		return customerCall(sess, storefront.ToolGetCustomerOrders)

	case hasAny(norm, "account", "profile", "membership", "tier"):
		return customerCall(sess, storefront.ToolGetCustomer)

	default:
		return searchCall(lower, norm, sess)
	}
}

// intentStopwords extends the search filter with intent verbs so that
// "can I return this MacBook" leaves exactly the product term behind.
var intentStopwords = map[string]bool{
	"return": true, "returns": true, "returned": true, "refund": true,
	"refunded": true, "exchange": true, "cancel": true, "cancelled": true,
	"item": true, "items": true, "product": true, "products": true,
	"bought": true, "ordered": true, "still": true, "if": true, "it": true,
}

// productTerms is what remains of the utterance once filler, verbs, and
// numbers are stripped: the thing the customer is talking about.
func productTerms(words []string) []string {
	var terms []string
	for _, w := range words {
		if searchStopwords[w] || intentStopwords[w] || isNumeric(w) {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// searchCall builds a product search from whatever terms survive the
// stopword filter, carrying a price cap when one was stated or remembered.
func searchCall(lower string, words []string, sess *session.Session) []execute.ToolCall {
	var terms []string
	for _, w := range words {
		if searchStopwords[w] || isNumeric(w) {
			continue
		}
		terms = append(terms, w)
	}
	if len(terms) == 0 {
		return nil
	}

	params := map[string]any{"query": strings.Join(terms, " ")}
	if cap := priceCap(lower); cap > 0 {
		params["maxPrice"] = cap
	} else if remembered := sess.Slot(session.SlotMaxPrice); remembered != "" {
		if v, err := strconv.ParseFloat(remembered, 64); err == nil {
			params["maxPrice"] = v
		}
	}
	return []execute.ToolCall{{Tool: storefront.ToolSearchProducts, Params: params, DependsOn: -1}}
}

// customerCall wraps a customer-scoped read; without a customer id there is
// nothing to look up.
func customerCall(sess *session.Session, tool string) []execute.ToolCall {
	if sess.CustomerID == "" {
		return nil
	}
	return []execute.ToolCall{{
		Tool:      tool,
		Params:    map[string]any{"customerId": sess.CustomerID},
		DependsOn: -1,
	}}
}

// extractSlots records facts from the utterance the next turn may need:
// a stated price cap, a referenced order, an address fragment, and whether
// the customer is mid-purchase. SetSlot ignores empties, so a turn that
// states nothing erases nothing.
func extractSlots(utterance string, sess *session.Session) {
	lower := strings.ToLower(utterance)

	if cap := priceCap(lower); cap > 0 {
		sess.SetSlot(session.SlotMaxPrice, strconv.FormatFloat(cap, 'f', -1, 64))
	}
	if id := orderRef(utterance); id != "" {
		sess.SetSlot(session.SlotLastOrderID, id)
	}
	if m := addressPattern.FindStringSubmatch(utterance); m != nil {
		sess.SetSlot(session.SlotPendingAddress, strings.TrimRight(strings.TrimSpace(m[1]), ".!?"))
	}
	if hasAny(normalizeWords(lower), "buy", "purchase", "checkout") {
		sess.SetSlot(session.SlotPurchaseIntent, "true")
	}
}

// requestedChange names the change a rule-driven request asks for, in the
// vocabulary strategy conditions use.
func requestedChange(utterance string) string {
	words := normalizeWords(strings.ToLower(utterance))
	switch {
	case hasAny(words, "address", "addresses", "deliver", "delivery", "ship", "shipping", "destination"):
		return "address"
	case hasAny(words, "cancel", "cancellation"):
		return "cancel"
	case hasAny(words, "return", "refund", "exchange"):
		return "return"
	case hasAny(words, "payment", "card", "pay"):
		return "payment"
	default:
		return ""
	}
}

// orderRef pulls an explicit order id out of the utterance, if any. Bare
// words after "order" ("order status") do not count; the reference must
// carry a digit.
func orderRef(utterance string) string {
	m := orderRefPattern.FindStringSubmatch(strings.ToLower(utterance))
	if m == nil || !strings.ContainsAny(m[1], "0123456789") {
		return ""
	}
	return m[1]
}

// priceCap extracts a stated upper price bound, 0 when absent.
func priceCap(lower string) float64 {
	m := priceCapPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	return parseAmount(m[1])
}

// firstAmount extracts the first money amount mentioned, 0 when absent.
func firstAmount(lower string) float64 {
	m := amountPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	if m[1] != "" {
		return parseAmount(m[1])
	}
	return parseAmount(m[2])
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// normalizeWords lowercases and tokenizes, stripping punctuation the same
// way the classifier does so intent and classification see the same words.
func normalizeWords(lower string) []string {
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r == '\'' || r == '’':
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func hasAny(words []string, wanted ...string) bool {
	for _, w := range words {
		for _, t := range wanted {
			if w == t {
				return true
			}
		}
	}
	return false
}

func isNumeric(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(w) > 0
}
