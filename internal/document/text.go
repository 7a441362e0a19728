package document

import "strings"

// ExtractText joins all leaf text spans with spaces, used for previews
// and word counts.
func ExtractText(n *Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.Walk(func(node *Node, _ int) bool {
		if node.IsText() && node.Text != "" {
			b.WriteString(node.Text)
			b.WriteString(" ")
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

// WordCount counts whitespace-separated words in the tree's text.
func WordCount(n *Node) int {
	text := ExtractText(n)
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

// Preview truncates the tree's text to at most maxLen characters,
// appending an ellipsis when truncated. Truncation is rune-aware so a
// multi-byte character is never split.
func Preview(n *Node, maxLen int) string {
	text := ExtractText(n)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
