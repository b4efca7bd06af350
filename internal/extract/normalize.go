package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Normalize prepares free text for extraction: HTML markup is stripped
// when present and whitespace is collapsed to single spaces.
func Normalize(text string) string {
	if looksLikeHTML(text) {
		if doc, err := html.Parse(strings.NewReader(text)); err == nil {
			text = visibleText(doc)
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func looksLikeHTML(text string) bool {
	open := strings.IndexByte(text, '<')
	if open < 0 {
		return false
	}
	return strings.IndexByte(text[open:], '>') > 0
}

// visibleText collects text nodes, skipping script/style content
func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// splitSentences splits normalized text on sentence terminators. Very short
// fragments are dropped; text without terminators comes back whole.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) > 5 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' {
				flush()
			}
		}
	}
	flush()

	return sentences
}
