package services

import (
	"context"
	"strings"

	"filechat/chatstate"
	"filechat/database"
	apperrors "filechat/errors"
	"filechat/llmclient"
	"filechat/web/format"
	"filechat/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatService struct {
	chats  *chatstate.Cache
	files  *FileService
	llm    *llmclient.Client
	logger *zap.Logger
}

func NewChatService(
	chats *chatstate.Cache,
	files *FileService,
	llm *llmclient.Client,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chats:  chats,
		files:  files,
		llm:    llm,
		logger: logger,
	}
}

// SendResult is one completed exchange: the user's message and the model's
// reply appended to the chat, plus the reply rendered as HTML for display.
type SendResult struct {
	Chat     database.Chat
	Reply    string
	Rendered string
}

// List returns the user's chats, newest first.
func (cs *ChatService) List(ctx context.Context, userID uuid.UUID) ([]database.Chat, error) {
	return cs.chats.ListChats(ctx, userID)
}

// Get returns one of the user's chats with its full message history.
func (cs *ChatService) Get(ctx context.Context, userID, chatID uuid.UUID) (database.Chat, error) {
	return cs.chats.GetChat(ctx, userID, chatID)
}

// Create starts a new chat, optionally attached to one of the user's files.
func (cs *ChatService) Create(ctx context.Context, userID uuid.UUID, title string, fileID *uuid.UUID) (database.Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = llmclient.FallbackTitle
	}
	return cs.chats.CreateChat(ctx, userID, title, fileID)
}

// Rename sets a chat's title.
func (cs *ChatService) Rename(ctx context.Context, userID, chatID uuid.UUID, title string) (database.Chat, error) {
	return cs.chats.UpdateChatTitle(ctx, userID, chatID, title)
}

// Delete removes a chat.
func (cs *ChatService) Delete(ctx context.Context, userID, chatID uuid.UUID) error {
	return cs.chats.DeleteChat(ctx, userID, chatID)
}

// SendMessage runs one exchange: it loads the chat and its attached file,
// asks the model for a reply in the context of both, and persists the new
// user/model message pair. The first exchange of a chat also derives the
// chat's title from the user's message.
func (cs *ChatService) SendMessage(ctx context.Context, userID, chatID uuid.UUID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidData, "message is empty")
	}

	chat, err := cs.chats.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	req := llmclient.ConversationRequest{
		History: append(append([]types.Message{}, chat.Messages...), types.Message{
			Role:    types.RoleUser,
			Content: text,
		}),
	}
	if chat.FileID != nil {
		if err := cs.attachFileContext(ctx, userID, *chat.FileID, &req); err != nil {
			return nil, err
		}
	}

	reply, err := cs.llm.Converse(ctx, req)
	if err != nil {
		return nil, err
	}

	firstExchange := len(chat.Messages) == 0

	updated, err := cs.chats.AppendMessages(ctx, userID, chatID, []types.Message{
		{Role: types.RoleUser, Content: text},
		{Role: types.RoleModel, Content: reply},
	})
	if err != nil {
		return nil, err
	}

	if firstExchange && (chat.Title == "" || chat.Title == llmclient.FallbackTitle) {
		updated = cs.applyGeneratedTitle(ctx, userID, chatID, updated)
	}

	return &SendResult{
		Chat:     updated,
		Reply:    reply,
		Rendered: format.RenderHTML(reply),
	}, nil
}

// attachFileContext loads the chat's file and fills in the request's file
// fields: inline bytes for images, extracted text for everything else. A
// file deleted since the chat was created degrades to a plain conversation.
func (cs *ChatService) attachFileContext(ctx context.Context, userID, fileID uuid.UUID, req *llmclient.ConversationRequest) error {
	record, err := cs.files.Get(ctx, userID, fileID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			cs.logger.Warn("Chat references a missing file, continuing without context",
				zap.String("file_id", fileID.String()))
			return nil
		}
		return err
	}

	req.FileKind = record.Kind
	if record.Kind == types.KindImage {
		data, err := cs.files.ImageData(ctx, record)
		if err != nil {
			return err
		}
		req.Image = &llmclient.ImageAttachment{MIMEType: record.MimeType, Data: data}
		return nil
	}

	req.FileContent = record.ContentText
	return nil
}

// applyGeneratedTitle asks the model to title the chat after its first
// exchange. Failures keep the fallback title; the exchange itself already
// succeeded.
func (cs *ChatService) applyGeneratedTitle(ctx context.Context, userID, chatID uuid.UUID, chat database.Chat) database.Chat {
	source, ok := llmclient.TitleSource(chat.Messages)
	if !ok {
		return chat
	}

	title, err := cs.llm.GenerateTitle(ctx, source)
	if err != nil {
		cs.logger.Warn("Failed to generate chat title",
			zap.Error(err),
			zap.String("chat_id", chatID.String()))
		return chat
	}

	renamed, err := cs.chats.UpdateChatTitle(ctx, userID, chatID, title)
	if err != nil {
		cs.logger.Warn("Failed to store generated chat title",
			zap.Error(err),
			zap.String("chat_id", chatID.String()))
		return chat
	}
	return renamed
}
