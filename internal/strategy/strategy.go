// Package strategy holds the declarative business strategies: condition
// lists plus ordered actions, loaded from a YAML document product owners
// edit without redeploying. Conditions come from a small closed clause
// vocabulary evaluated by a fixed interpreter; there is no general rule
// language here.
//
// Selection is deterministic: among fully-satisfied strategies the longest
// condition list wins, and ties fall to the one declared first.
package strategy

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every defect in the strategy document: unknown
// tools, unknown placeholders, malformed dependencies. It is fatal at load
// time; a document that references a tool the gateway does not carry is a
// deployment mistake, not a runtime condition.
var ErrConfiguration = errors.New("strategy configuration")

// RuleContext carries the situational facts conditions are tested against
// and the values parameter templates resolve. The planner fills it from
// the session and the referenced order; a zero field means the fact is
// unknown, and every clause testing an unknown fact evaluates false.
type RuleContext struct {
	OrderID         string
	OrderStatus     string
	OrderAge        time.Duration
	OrderTotal      float64
	CustomerID      string
	CustomerTier    string
	RequestedChange string
	PendingAddress  string

	// OrderItems is carried opaquely into {order_items} templates, in
	// whatever shape the gateway accepts. Conditions never inspect it.
	OrderItems any
}

// Strategy is one declarative business rule. Conditions and Actions keep
// their document form for listing and reload diffing; conds is the parsed
// form Evaluate runs against.
type Strategy struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Conditions []string `json:"conditions"`
	Actions    []Action `json:"actions"`

	conds []clause
}

// Action maps one action clause to a gateway tool and a parameter
// template. Needs is either empty or "previous", marking that the step
// consumes the preceding step's outcome and must not run if it failed.
type Action struct {
	Note   string            `json:"note"`
	Tool   string            `json:"tool"`
	Params map[string]string `json:"params,omitempty"`
	Needs  string            `json:"needs,omitempty"`
}

// ActionStep is one expanded step of a selected strategy: the tool to
// call, resolved parameters, and the index of the step it depends on
// (-1 when independent).
type ActionStep struct {
	Tool      string
	Params    map[string]any
	DependsOn int
	Note      string
}
