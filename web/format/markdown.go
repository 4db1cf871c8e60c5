package format

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
)

// PreprocessAssistantText normalizes LLM output.
// Performs basic text cleanup for better readability.
func PreprocessAssistantText(text string) string {
	if text == "" {
		return text
	}

	// Replace curly quotes (helps readability)
	text = strings.NewReplacer(
		"“", "\"", // "
		"”", "\"", // "
		"‘", "'", // '
		"’", "'", // '
	).Replace(text)

	return text
}

// RenderHTML converts a model reply from markdown to HTML for the chat view.
// The raw markdown stays in the database; rendering happens per response.
func RenderHTML(text string) string {
	text = PreprocessAssistantText(text)
	text = normalizeMarkdownLists(text)
	return string(markdown.ToHTML([]byte(text), nil, nil))
}

var listItemPattern = regexp.MustCompile(`^\d+\.\s`)

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "+ ") ||
		listItemPattern.MatchString(line)
}

// normalizeMarkdownLists ensures list items have proper spacing for markdown parsing.
// Markdown requires a blank line before lists, but LLMs often forget this.
func normalizeMarkdownLists(text string) string {
	lines := strings.Split(text, "\n")
	var result []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if isListItem(trimmed) && i > 0 {
			prevLine := strings.TrimSpace(lines[i-1])
			if prevLine != "" && !isListItem(prevLine) {
				result = append(result, "")
			}
		}

		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
