package llmclient

import (
	"context"
	"fmt"
	"strings"

	apperrors "filechat/errors"
	"filechat/prompts"
	"filechat/web/types"

	"github.com/tmc/langchaingo/llms"
)

// ConversationRequest carries one reply generation. History is the chat's
// ordered messages with the user's newest message as the last element. For
// text-bearing files FileContent holds the extracted text; for images Image
// holds the raw bytes instead and FileContent stays empty.
type ConversationRequest struct {
	History     []types.Message
	FileKind    string
	FileContent string
	Image       *ImageAttachment
}

// ImageAttachment is inline binary image data attached to the final turn.
type ImageAttachment struct {
	MIMEType string
	Data     []byte
}

// session is the accumulator for one reply generation. The model API is
// stateless, so each send submits every turn gathered so far plus the new
// one, then folds both the new turn and the model's reply into the state
// for the next send.
type session struct {
	client  *Client
	history []llms.MessageContent
}

func (s *session) send(ctx context.Context, parts ...llms.ContentPart) (string, error) {
	turn := llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: parts}

	reply, err := s.client.generate(ctx, append(s.history, turn))
	if err != nil {
		return "", err
	}

	s.history = append(s.history, turn, llms.TextParts(llms.ChatMessageTypeAI, reply))
	return reply, nil
}

// Converse generates the model's reply to the final user turn in
// req.History. Because the provider keeps no state, the conversation is
// rebuilt on a fresh session each time: file context first, then the prior
// user turns in order, then the new message. Intermediate replies only feed
// the accumulated context; the returned string is the reply to the final
// turn alone.
func (c *Client) Converse(ctx context.Context, req ConversationRequest) (string, error) {
	if c.model == nil {
		return "", apperrors.WrapError(apperrors.ErrModelNotConfigured, "converse")
	}
	if len(req.History) == 0 {
		return "", apperrors.WrapError(apperrors.ErrInvalidData, "empty message history")
	}
	last := req.History[len(req.History)-1]
	if last.Role != types.RoleUser || strings.TrimSpace(last.Content) == "" {
		return "", apperrors.WrapError(apperrors.ErrInvalidData, "final turn must be a non-empty user message")
	}

	sess := &session{client: c}

	// Seed extracted file content. Images carry no instruction turn; their
	// bytes ride on the final turn instead.
	if req.FileContent != "" && req.FileKind != types.KindImage {
		if _, err := sess.send(ctx, llms.TextPart(contextInstruction(req.FileKind, req.FileContent))); err != nil {
			return "", err
		}
	}

	// Replay the prior user turns in their stored order. Stored model turns
	// are skipped: the acknowledgment replies generated during replay stand
	// in for them in the accumulated context.
	for _, msg := range req.History[:len(req.History)-1] {
		if msg.Role != types.RoleUser {
			continue
		}
		if _, err := sess.send(ctx, llms.TextPart(msg.Content)); err != nil {
			return "", err
		}
	}

	parts := []llms.ContentPart{llms.TextPart(last.Content)}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, llms.BinaryPart(req.Image.MIMEType, req.Image.Data))
	}
	return sess.send(ctx, parts...)
}

func contextInstruction(kind, content string) string {
	switch kind {
	case types.KindYouTube:
		return fmt.Sprintf("%s\n\n%s", prompts.TranscriptContext(), content)
	default:
		return fmt.Sprintf("%s\n\n%s", prompts.DocumentContext(), content)
	}
}
