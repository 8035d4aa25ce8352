// Package assistant owns ProcessQuery, the single entry point every
// surface (HTTP, MCP, TUI) drives: acquire the session, classify, plan,
// execute, compose, record the turn, emit the trace. One coordinating
// goroutine per utterance; fan-out happens only inside the coordinator.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/koopa0/kiosk/internal/classify"
	"github.com/koopa0/kiosk/internal/compose"
	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/observability"
	"github.com/koopa0/kiosk/internal/session"
)

// ErrEmptyMessage rejects a request with no utterance.
var ErrEmptyMessage = errors.New("message is required")

// MaxMessageLen bounds a single utterance. Longer input is truncated, not
// rejected: a pasted wall of text should still get a best-effort answer.
const MaxMessageLen = 4000

// Planner resolves a classified utterance into an execution plan.
// *route.Planner is the production implementation.
type Planner interface {
	Plan(ctx context.Context, utterance string, cls classify.Result, sess *session.Session) execute.Plan
}

// Runner executes a plan. *execute.Coordinator is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, plan execute.Plan) []execute.ToolResult
}

// Request is one inbound utterance with its conversation coordinates.
type Request struct {
	Message    string    `json:"message"`
	CustomerID string    `json:"customer_id"`
	SessionID  uuid.UUID `json:"session_id"`
}

// Response is the composed turn result handed back to the surface.
type Response struct {
	Message        string              `json:"message"`
	UIComponents   []compose.Component `json:"ui_components,omitempty"`
	LayoutStrategy string              `json:"layout_strategy,omitempty"`
	UserIntent     string              `json:"user_intent,omitempty"`
	TraceID        string              `json:"trace_id"`
	SessionID      uuid.UUID           `json:"session_id"`
}

// Assistant coordinates one turn end to end.
type Assistant struct {
	sessions    *session.Manager
	planner     Planner
	coordinator Runner
	tracer      trace.Tracer
	logger      *slog.Logger
}

// New creates an Assistant.
func New(sessions *session.Manager, planner Planner, coordinator Runner, logger *slog.Logger) (*Assistant, error) {
	if sessions == nil {
		return nil, errors.New("assistant: session manager is required")
	}
	if planner == nil {
		return nil, errors.New("assistant: planner is required")
	}
	if coordinator == nil {
		return nil, errors.New("assistant: coordinator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		sessions:    sessions,
		planner:     planner,
		coordinator: coordinator,
		tracer:      observability.Tracer("kiosk/assistant"),
		logger:      logger.With("component", "assistant"),
	}, nil
}

// ProcessQuery runs one turn. It returns an error only for malformed
// requests and session-store failures; everything downstream (knowledge
// unavailable, tool failures, timeouts) degrades into the composed
// response instead. A zero SessionID starts a new conversation; the
// assigned id comes back on the response.
func (a *Assistant) ProcessQuery(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > MaxMessageLen {
		message = message[:MaxMessageLen]
	}
	if req.SessionID == uuid.Nil {
		req.SessionID = uuid.New()
	}

	ctx, span := a.tracer.Start(ctx, "assistant.process_query",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID.String()),
		))
	defer span.End()

	sess, release, err := a.sessions.Acquire(ctx, req.SessionID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	defer release()

	cls := classify.Classify(message, sess.Snapshot())
	span.SetAttributes(
		attribute.String("classify.category", string(cls.Category)),
		attribute.Float64("classify.confidence", cls.Confidence),
		attribute.Int("classify.signals", len(cls.Signals)),
	)

	plan := a.planner.Plan(ctx, message, cls, sess)
	span.SetAttributes(
		attribute.String("route.tag", plan.Tag),
		attribute.Int("route.calls", len(plan.Calls)),
	)
	if plan.StrategyID != "" {
		span.SetAttributes(attribute.String("route.business_strategy", plan.StrategyID))
	}

	var results []execute.ToolResult
	if len(plan.Calls) > 0 {
		results = a.coordinator.Run(ctx, plan)
	}
	for _, r := range results {
		span.AddEvent("tool_call", trace.WithAttributes(
			attribute.String("tool", r.Tool),
			attribute.String("status", string(r.Status)),
			attribute.String("reason", r.Reason),
			attribute.Int64("latency_ms", r.Latency.Milliseconds()),
		))
	}

	// A canceled request stops here: results from calls that were already
	// in flight are discarded, and no turn is recorded.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request canceled: %w", err)
	}

	composed := compose.Compose(plan, results, plan.Matches)
	span.SetAttributes(attribute.String("response.strategy", composed.StrategyUsed))

	a.record(ctx, sess, message, cls, composed)

	return &Response{
		Message:        composed.Message,
		UIComponents:   composed.UI,
		LayoutStrategy: composed.Layout,
		UserIntent:     string(cls.Category),
		TraceID:        a.traceID(span),
		SessionID:      sess.ID,
	}, nil
}

// record persists the turn and any slots the planner extracted. Persistence
// trouble is logged, never surfaced: the customer already has the answer.
func (a *Assistant) record(ctx context.Context, sess *session.Session, message string, cls classify.Result, composed compose.Response) {
	turn := session.Turn{
		Utterance:   message,
		Intent:      string(cls.Category),
		StrategyTag: composed.StrategyUsed,
		Response:    composed.Message,
	}
	if err := a.sessions.RecordTurn(ctx, sess, turn); err != nil {
		a.logger.Error("recording turn failed",
			"session_id", sess.ID,
			"error", err)
	}
	if err := a.sessions.SaveSlots(ctx, sess); err != nil {
		a.logger.Error("saving slots failed",
			"session_id", sess.ID,
			"error", err)
	}
}

// traceID reports the span's trace id, or a fresh uuid when tracing is
// disabled so callers always get a correlation handle.
func (a *Assistant) traceID(span trace.Span) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
