package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "filechat/errors"
	"filechat/web/types"

	"github.com/google/uuid"
)

// Chat is one conversation row. The full ordered message history lives in
// the messages JSONB column and is replaced wholesale on every write, so the
// latest writer wins.
type Chat struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Title     string          `json:"title"`
	FileID    *uuid.UUID      `json:"file_id,omitempty"`
	Messages  []types.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const chatColumns = `id, user_id, title, file_id, messages, created_at, updated_at`

func (s *PostgresStore) CreateChat(ctx context.Context, chat Chat) (Chat, error) {
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now

	messagesJSON, err := encodeMessages(chat.Messages)
	if err != nil {
		return Chat{}, err
	}

	query := `
        INSERT INTO chats (id, user_id, title, file_id, messages, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + chatColumns
	row := s.DB.QueryRowContext(ctx, query,
		chat.ID, chat.UserID, chat.Title, uuidToNullString(chat.FileID), messagesJSON, chat.CreatedAt, chat.UpdatedAt)

	created, err := scanChat(row)
	if err != nil {
		return Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	return created, nil
}

// GetChats returns every chat owned by userID, newest first.
func (s *PostgresStore) GetChats(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	query := `
        SELECT ` + chatColumns + `
        FROM chats
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// GetChat fetches a single chat. Rows owned by a different user are
// indistinguishable from missing rows.
func (s *PostgresStore) GetChat(ctx context.Context, userID, chatID uuid.UUID) (Chat, error) {
	query := `
        SELECT ` + chatColumns + `
        FROM chats
        WHERE id = $1 AND user_id = $2
    `
	chat, err := scanChat(s.DB.QueryRowContext(ctx, query, chatID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, apperrors.WrapError(apperrors.ErrChatNotFound, "get chat")
		}
		return Chat{}, err
	}
	return chat, nil
}

func (s *PostgresStore) UpdateChatTitle(ctx context.Context, userID, chatID uuid.UUID, title string) (Chat, error) {
	query := `
        UPDATE chats
        SET title = $1, updated_at = $2
        WHERE id = $3 AND user_id = $4
        RETURNING ` + chatColumns
	chat, err := scanChat(s.DB.QueryRowContext(ctx, query, title, time.Now(), chatID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, apperrors.WrapError(apperrors.ErrChatNotFound, "update chat title")
		}
		return Chat{}, err
	}
	return chat, nil
}

// UpdateChatMessages replaces the stored message history with the given
// slice. Callers send the complete history, not a delta.
func (s *PostgresStore) UpdateChatMessages(ctx context.Context, userID, chatID uuid.UUID, messages []types.Message) (Chat, error) {
	messagesJSON, err := encodeMessages(messages)
	if err != nil {
		return Chat{}, err
	}

	query := `
        UPDATE chats
        SET messages = $1, updated_at = $2
        WHERE id = $3 AND user_id = $4
        RETURNING ` + chatColumns
	chat, err := scanChat(s.DB.QueryRowContext(ctx, query, messagesJSON, time.Now(), chatID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, apperrors.WrapError(apperrors.ErrChatNotFound, "update chat messages")
		}
		return Chat{}, err
	}
	return chat, nil
}

func (s *PostgresStore) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.WrapError(apperrors.ErrChatNotFound, "delete chat")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (Chat, error) {
	var chat Chat
	var fileID sql.NullString
	var messagesJSON []byte
	if err := row.Scan(&chat.ID, &chat.UserID, &chat.Title, &fileID, &messagesJSON, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return Chat{}, err
	}
	chat.FileID = nullStringToUUID(fileID)
	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &chat.Messages); err != nil {
			return Chat{}, fmt.Errorf("failed to decode chat messages: %w", err)
		}
	}
	if chat.Messages == nil {
		chat.Messages = []types.Message{}
	}
	return chat, nil
}

func encodeMessages(messages []types.Message) ([]byte, error) {
	if messages == nil {
		messages = []types.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat messages: %w", err)
	}
	return data, nil
}
