package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maxChunkLen bounds one chunk in runes. Sized well under the embedder's
// token limit so no chunk is truncated during embedding.
const maxChunkLen = 1600

// blockTags force a line break around their content when flattening.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"br": true, "blockquote": true, "pre": true,
}

// skipTags contribute no article text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "aside": true, "header": true,
}

var (
	spaceRun = regexp.MustCompile(`[ \t]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// flattenHTML renders an HTML fragment as plain text: block elements
// become line breaks, chrome elements are dropped, whitespace is
// normalized to single spaces and at most one blank line.
func flattenHTML(fragment string) (string, error) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(root)

	text := spaceRun.ReplaceAllString(b.String(), " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

// chunkText splits flattened text into chunks of at most maxLen runes,
// packing whole paragraphs together and splitting an oversized
// paragraph at the last space before the limit.
func chunkText(text string, maxLen int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len([]rune(para)) > maxLen {
			head, rest := splitAt(para, maxLen)
			flush()
			chunks = append(chunks, head)
			para = rest
		}

		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(para))+2 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// splitAt cuts s at the last space at or before the rune limit, falling
// back to a hard cut when the text has no spaces.
func splitAt(s string, limit int) (head, rest string) {
	runes := []rune(s)
	cut := limit
	for i := limit; i > limit/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])), strings.TrimSpace(string(runes[cut:]))
}
