package tui

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/koopa0/kiosk/internal/assistant"
)

// answerMsg carries a completed assistant response.
type answerMsg struct {
	resp *assistant.Response
}

// answerErrMsg carries a failed query.
type answerErrMsg struct {
	err error
}

// ask returns a command running one query against the assistant. The
// cancel func is stored on the model first so Esc and Ctrl+C can abort
// the in-flight call.
func (t *TUI) ask(query string) tea.Cmd {
	ctx, cancel := context.WithTimeout(t.ctx, askTimeout)
	t.askCancel = cancel

	req := assistant.Request{
		Message:    query,
		CustomerID: t.customerID,
		SessionID:  t.sessionID,
	}
	return func() tea.Msg {
		defer cancel()
		resp, err := t.assistant.ProcessQuery(ctx, req)
		if err != nil {
			return answerErrMsg{err: err}
		}
		return answerMsg{resp: resp}
	}
}

// cancelAsk aborts the in-flight query, if any.
func (t *TUI) cancelAsk() {
	if t.askCancel != nil {
		t.askCancel()
		t.askCancel = nil
	}
}
