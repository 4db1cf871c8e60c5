package llmclient

import (
	"context"
	"fmt"
	"strings"

	apperrors "filechat/errors"
	"filechat/prompts"
	"filechat/web/types"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// FallbackTitle is used when the model returns nothing usable.
const FallbackTitle = "New Conversation"

// GenerateTitle asks the model for a short chat title based on the first
// user message. The result is sanitized to at most five plain words; if
// nothing usable survives, FallbackTitle is returned without error.
func (c *Client) GenerateTitle(ctx context.Context, content string) (string, error) {
	if c.model == nil {
		return "", apperrors.WrapError(apperrors.ErrModelNotConfigured, "generate title")
	}

	userPrompt := fmt.Sprintf(`User message:
%s

Respond with only the title.`, content)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompts.TitleGenerator()),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	title, err := c.generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm chat call failed for title generation: %w", err)
	}

	cleaned := sanitizeTitle(strings.TrimSpace(title))
	if cleaned == "" {
		c.logger.Warn("LLM returned invalid title, using fallback",
			zap.String("raw_title", title),
			zap.String("content_preview", truncateString(content, 100)))
		return FallbackTitle, nil
	}

	return cleaned, nil
}

// TitleSource picks the message a chat title should be generated from,
// which is the first non-blank user message of the history.
func TitleSource(history []types.Message) (string, bool) {
	for _, msg := range history {
		if msg.Role == types.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return msg.Content, true
		}
	}
	return "", false
}

// Helper function
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// stripSurroundingQuotes removes a single pair of matching leading/trailing quotes.
// Handles common ASCII and smart quote variants.
func stripSurroundingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := map[rune]rune{
		'"':  '"',
		'\'': '\'',
		'“':  '”',
		'”':  '”', // in case only ” is used on both ends
		'‘':  '’',
		'’':  '’', // in case only ’ is used on both ends
	}
	runes := []rune(s)
	first := runes[0]
	last := runes[len(runes)-1]
	if expected, ok := pairs[first]; ok && last == expected {
		return string(runes[1 : len(runes)-1])
	}
	return s
}

func trimQuotesAndSpaces(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = stripSurroundingQuotes(s)
	return strings.TrimSpace(s)
}

func sanitizeTitle(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	for _, line := range lines {
		candidate := trimQuotesAndSpaces(line)
		if candidate == "" {
			continue
		}

		if strings.HasPrefix(strings.ToLower(candidate), "title:") {
			candidate = trimQuotesAndSpaces(candidate[len("title:"):])
			if candidate == "" {
				continue
			}
		}

		words := strings.Fields(candidate)
		if len(words) > 5 {
			candidate = strings.Join(words[:5], " ")
		}

		return candidate
	}

	return ""
}
