// Package storefront is the typed client for the commerce backend API.
//
// Every operation the assistant can perform against the store (catalog
// search, orders, gift cards, addresses) goes through the Gateway here.
// Calls are rate limited client-side, idempotent reads retry with
// exponential backoff, and mutations are sent exactly once.
//
// # Dispatch
//
// Typed methods (SearchProducts, CreateOrder, ...) serve handwritten
// callers. Call dispatches by tool name with loosely-typed parameters for
// execution plans, and Tools lists the dispatchable names so strategy
// configuration can be validated at load time.
package storefront
