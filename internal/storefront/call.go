package storefront

import (
	"context"
	"errors"
	"fmt"
)

// Tool names as strategies and execution plans reference them.
const (
	ToolSearchProducts    = "searchProducts"
	ToolGetCustomer       = "getCustomer"
	ToolGetCustomerOrders = "getCustomerOrders"
	ToolCreateOrder       = "createOrder"
	ToolCancelOrder       = "cancelOrder"
	ToolReturnOrder       = "returnOrder"
	ToolIssueGiftCard     = "issueGiftCard"
	ToolGetAddresses      = "getAddresses"
	ToolSetDefaultAddress = "setDefaultAddress"
)

// ErrUnknownTool is returned by Call for a name outside Tools(). Strategy
// loading checks action mappings against Tools() up front, so hitting this
// at runtime means a plan was built outside the engine.
var ErrUnknownTool = errors.New("unknown tool")

// Tools returns every tool name the gateway can dispatch.
func (g *Gateway) Tools() []string {
	return []string{
		ToolSearchProducts,
		ToolGetCustomer,
		ToolGetCustomerOrders,
		ToolCreateOrder,
		ToolCancelOrder,
		ToolReturnOrder,
		ToolIssueGiftCard,
		ToolGetAddresses,
		ToolSetDefaultAddress,
	}
}

// Call dispatches a tool by name with loosely-typed parameters, as they
// arrive from execution plans and strategy action templates. Parameter
// coercion accepts JSON-shaped values (strings, float64/int numbers,
// []any item lists).
func (g *Gateway) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	switch name {
	case ToolSearchProducts:
		filters := ProductFilters{
			Category: stringParam(params, "category"),
			MinPrice: floatParam(params, "minPrice"),
			MaxPrice: floatParam(params, "maxPrice"),
			InStock:  boolParam(params, "inStock"),
		}
		return g.SearchProducts(ctx, stringParam(params, "query"), filters)

	case ToolGetCustomer:
		return g.GetCustomer(ctx, stringParam(params, "customerId"))

	case ToolGetCustomerOrders:
		return g.GetCustomerOrders(ctx, stringParam(params, "customerId"))

	case ToolCreateOrder:
		items, err := itemsParam(params, "items")
		if err != nil {
			return nil, err
		}
		return g.CreateOrder(ctx,
			stringParam(params, "customerId"),
			items,
			stringParam(params, "shippingAddress"),
			stringParam(params, "paymentMethod"),
		)

	case ToolCancelOrder:
		return g.CancelOrder(ctx, stringParam(params, "orderId"))

	case ToolReturnOrder:
		return g.ReturnOrder(ctx, stringParam(params, "orderId"), stringParam(params, "reason"))

	case ToolIssueGiftCard:
		return g.IssueGiftCard(ctx, floatParam(params, "amount"))

	case ToolGetAddresses:
		return g.GetAddresses(ctx, stringParam(params, "customerId"))

	case ToolSetDefaultAddress:
		return g.SetDefaultAddress(ctx,
			stringParam(params, "customerId"),
			stringParam(params, "addressId"),
		)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

// stringParam reads a string parameter; missing or non-string yields "".
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// floatParam reads a numeric parameter, accepting the types JSON and YAML
// decoders produce.
func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// boolParam reads a boolean parameter; missing or non-bool yields false.
func boolParam(params map[string]any, key string) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return false
}

// itemsParam reads an order item list. Accepts []OrderItem directly (plans
// built in Go) or []any of maps (plans decoded from JSON/YAML).
func itemsParam(params map[string]any, key string) ([]OrderItem, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []OrderItem:
		return v, nil
	case []any:
		items := make([]OrderItem, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: expected object, got %T", i, elem)
			}
			items = append(items, OrderItem{
				ProductID: stringParam(m, "productId"),
				Name:      stringParam(m, "name"),
				Quantity:  int(floatParam(m, "quantity")),
				Price:     floatParam(m, "price"),
			})
		}
		return items, nil
	default:
		return nil, fmt.Errorf("items: expected list, got %T", raw)
	}
}
