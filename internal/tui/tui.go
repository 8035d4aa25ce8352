// Package tui is the Bubble Tea terminal client for kiosk. It drives the
// assistant pipeline locally: typed utterances go through the same
// classify/route/execute path the HTTP API serves, and responses render
// as markdown plus card views of the UI component descriptors.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/koopa0/kiosk/internal/assistant"
)

// State represents the TUI state machine.
type State int

// TUI states.
const (
	StateInput    State = iota // Awaiting user input
	StateThinking              // A query is in flight
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100 // Maximum messages stored
	maxHistory  = 100 // Maximum input history entries
)

// askTimeout bounds one query end to end. Generous relative to the
// per-tool timeout so slow plans still finish.
const askTimeout = time.Minute

// Message role constants for consistent display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleCards     = "cards" // pre-rendered component block, no markdown pass
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Above and below input
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Message is one conversation entry for display.
type Message struct {
	Role string
	Text string
}

// QueryProcessor is the assistant surface the TUI drives.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

// TUI is the Bubble Tea model for the kiosk terminal client.
type TUI struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder // Reused by View() to reduce allocations
	messages []Message

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar
	help help.Model
	keys keyMap

	// In-flight query cancellation
	askCancel context.CancelFunc

	// Dependencies
	assistant  QueryProcessor
	customerID string
	sessionID  uuid.UUID // assigned by the first response, then carried
	ctx        context.Context
	ctxCancel  context.CancelFunc

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// addMessage appends a message and enforces the maxMessages bound.
func (t *TUI) addMessage(msg Message) {
	t.messages = append(t.messages, msg)
	if len(t.messages) > maxMessages {
		t.messages = t.messages[len(t.messages)-maxMessages:]
	}
}

// New creates the TUI model.
//
// ctx must be the same context passed to tea.WithContext so cancellation
// behaves consistently.
func New(ctx context.Context, processor QueryProcessor, customerID string) (*TUI, error) {
	if processor == nil {
		return nil, errors.New("tui.New: query processor is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds a newline.
	ta := textarea.New()
	ta.Placeholder = "Ask about products, orders, or policies..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keys are routed explicitly in handleKey, so the built-in
	// bindings stay off to avoid conflicts with textarea navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	return &TUI{
		assistant:  processor,
		customerID: customerID,
		ctx:        ctx,
		ctxCancel:  cancel,
		input:      ta,
		spinner:    sp,
		viewport:   vp,
		help:       help.New(),
		keys:       newKeyMap(),
		styles:     DefaultStyles(),
		history:    make([]string, 0, maxHistory),
		markdown:   newMarkdownRenderer(80),
		width:      80,
	}, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
	)
}

// Run starts the Bubble Tea program and blocks until exit.
func Run(ctx context.Context, processor QueryProcessor, customerID string) error {
	model, err := New(ctx, processor, customerID)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
