package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/koopa0/kiosk/internal/compose"
)

// renderComponents draws the response's UI component descriptors as
// terminal cards, one under another. The storefront front end renders
// these richly; here they become bordered boxes so the terminal client
// shows the same information.
func renderComponents(components []compose.Component, styles Styles, width int) string {
	if len(components) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}

	blocks := make([]string, 0, len(components))
	for _, c := range components {
		blocks = append(blocks, renderComponent(c, styles, width))
	}
	return strings.Join(blocks, "\n")
}

func renderComponent(c compose.Component, styles Styles, width int) string {
	var b strings.Builder

	if title := propString(c.Props, "title"); title != "" {
		_, _ = b.WriteString(styles.CardTitle.Render(title))
		_, _ = b.WriteString("\n")
	}

	switch c.Type {
	case compose.TypeList:
		for _, item := range propItems(c.Props) {
			_, _ = b.WriteString("• ")
			_, _ = b.WriteString(styles.CardValue.Render(item))
			_, _ = b.WriteString("\n")
		}
	case compose.TypeText:
		if text := propString(c.Props, "text"); text != "" {
			_, _ = b.WriteString(styles.CardValue.Render(text))
			_, _ = b.WriteString("\n")
		}
	default:
		// card, form, button-group: field rows in stable order.
		for _, k := range sortedPropKeys(c.Props) {
			_, _ = b.WriteString(styles.CardField.Render(k + ": "))
			_, _ = b.WriteString(styles.CardValue.Render(fmt.Sprintf("%v", c.Props[k])))
			_, _ = b.WriteString("\n")
		}
	}

	if len(c.Actions) > 0 {
		buttons := make([]string, len(c.Actions))
		for i, a := range c.Actions {
			buttons[i] = styles.Button.Render(a.ID)
		}
		_, _ = b.WriteString(strings.Join(buttons, " "))
		_, _ = b.WriteString("\n")
	}

	content := strings.TrimRight(b.String(), "\n")
	return styles.Card.Width(width).Render(content)
}

// sortedPropKeys returns prop keys in sorted order so card rows render
// deterministically. The title renders separately; item lists render as
// bullets, but a scalar "items" (an order's item count) stays a field.
func sortedPropKeys(props map[string]any) []string {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if k == "title" {
			continue
		}
		if k == "items" {
			switch v.(type) {
			case []string, []any:
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propItems(props map[string]any) []string {
	switch items := props["items"].(type) {
	case []string:
		return items
	case []any:
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = fmt.Sprintf("%v", it)
		}
		return out
	default:
		return nil
	}
}
