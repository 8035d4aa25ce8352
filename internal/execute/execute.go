// Package execute runs tool-call plans against the storefront gateway:
// bounded concurrency for independent calls, strict ordering for dependent
// ones, per-call timeouts, and no retries of its own.
package execute

import (
	"time"

	"github.com/koopa0/kiosk/internal/knowledge"
)

// Status is the outcome of one tool call.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Failure and skip reasons carried on ToolResult.Reason.
const (
	ReasonTimeout    = "timeout"
	ReasonCanceled   = "canceled"
	ReasonError      = "error"
	ReasonDependency = "dependency"
)

// ToolCall is one step of a plan. DependsOn is the index of an earlier
// call whose success this one requires, or -1 when independent.
type ToolCall struct {
	Tool      string
	Params    map[string]any
	DependsOn int
	Note      string
}

// Plan is a single utterance's worth of work: the calls to make, the
// response strategy tag the composer reports, the selected business
// strategy if any, and the knowledge matches the planner attached. A plan
// with no calls carries knowledge only.
type Plan struct {
	Calls      []ToolCall
	Tag        string
	StrategyID string
	Matches    []knowledge.Match
}

// ToolResult is the settled outcome of one call, in plan order. Payload is
// set only on ok; Reason and Message describe failures (timeout
// distinguished from other errors) and skips.
type ToolResult struct {
	Tool    string
	Status  Status
	Payload any
	Reason  string
	Message string
	Latency time.Duration
}

// OK reports whether the call completed successfully.
func (r ToolResult) OK() bool { return r.Status == StatusOK }
