package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Gateway dispatches a single tool call by name. *storefront.Gateway is the
// production implementation; tests substitute recording fakes.
type Gateway interface {
	Call(ctx context.Context, name string, params map[string]any) (any, error)
}

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxConcurrent = 4
	DefaultCallTimeout   = 5 * time.Second
)

// Config tunes the coordinator.
type Config struct {
	// MaxConcurrent caps simultaneous outstanding tool calls.
	MaxConcurrent int
	// CallTimeout bounds each individual call.
	CallTimeout time.Duration
}

// Coordinator runs execution plans. Independent calls run concurrently
// under a fixed cap; a call that depends on an earlier call waits for it
// and runs only if it succeeded. The coordinator never retries: the
// gateway retries idempotent reads itself, and retrying a mutation here
// could double-submit an order.
type Coordinator struct {
	gateway Gateway
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator over the gateway.
func NewCoordinator(gateway Gateway, cfg Config, logger *slog.Logger) (*Coordinator, error) {
	if gateway == nil {
		return nil, errors.New("execute: gateway is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Coordinator{
		gateway: gateway,
		limit:   limit,
		timeout: timeout,
		logger:  logger.With("component", "execute"),
	}, nil
}

// Run executes every call in the plan and returns one result per call, in
// declaration order regardless of completion order. A failed call never
// aborts independent siblings; calls dependent on a failed, skipped, or
// timed-out call come back skipped, never failed. Cancellation of ctx lets
// calls already in flight finish (their results land in the slice for the
// caller to discard) and marks calls not yet started as failed/canceled.
func (c *Coordinator) Run(ctx context.Context, plan Plan) []ToolResult {
	n := len(plan.Calls)
	if n == 0 {
		return nil
	}

	results := make([]ToolResult, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}
	sem := make(chan struct{}, c.limit)

	for i, call := range plan.Calls {
		go func(i int, call ToolCall) {
			defer close(done[i])
			results[i] = c.runCall(ctx, i, call, done, results, sem)
		}(i, call)
	}
	for i := range done {
		<-done[i]
	}

	for i, r := range results {
		if r.Status != StatusOK {
			c.logger.Warn("tool call did not complete",
				"tool", plan.Calls[i].Tool,
				"status", r.Status,
				"reason", r.Reason,
				"latency", r.Latency)
		}
	}
	return results
}

// runCall settles one call: dependency wait, semaphore, timeout, dispatch.
// Writes only its own slot of results; a dependent reads its dependency's
// slot strictly after that slot's done channel closes.
func (c *Coordinator) runCall(ctx context.Context, idx int, call ToolCall, done []chan struct{}, results []ToolResult, sem chan struct{}) ToolResult {
	if dep := call.DependsOn; dep >= idx {
		// A self or forward dependency would deadlock the wait below.
		// Settle it as skipped so Run stays total over arbitrary plans.
		return ToolResult{
			Tool:    call.Tool,
			Status:  StatusSkipped,
			Reason:  ReasonDependency,
			Message: fmt.Sprintf("invalid dependency index %d", dep),
		}
	}
	if dep := call.DependsOn; dep >= 0 {
		select {
		case <-done[dep]:
		case <-ctx.Done():
			return ToolResult{Tool: call.Tool, Status: StatusFailed, Reason: ReasonCanceled, Message: "request canceled"}
		}
		if !results[dep].OK() {
			return ToolResult{
				Tool:    call.Tool,
				Status:  StatusSkipped,
				Reason:  ReasonDependency,
				Message: fmt.Sprintf("requires %s, which did not complete", results[dep].Tool),
			}
		}
	}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return ToolResult{Tool: call.Tool, Status: StatusFailed, Reason: ReasonCanceled, Message: "request canceled"}
	}

	// Dispatch is detached from request cancellation: once a call is on
	// the wire it runs to completion under its own timeout, so a canceled
	// request can never leave a half-applied mutation behind. The ctx
	// checks above still stop calls that have not started.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	payload, err := c.gateway.Call(callCtx, call.Tool, call.Params)
	latency := time.Since(start)

	if err != nil {
		return ToolResult{
			Tool:    call.Tool,
			Status:  StatusFailed,
			Reason:  failureReason(callCtx, err),
			Message: err.Error(),
			Latency: latency,
		}
	}
	return ToolResult{Tool: call.Tool, Status: StatusOK, Payload: payload, Latency: latency}
}

// failureReason distinguishes the per-call deadline from everything else.
// callCtx is detached from the request context, so a deadline on it is
// always the per-call timeout; canceled can still surface from the
// gateway's own internals and is checked against the error chain first.
func failureReason(callCtx context.Context, err error) string {
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonError
}
