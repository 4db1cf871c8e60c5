package chatstate

import (
	"context"
	"strings"
	"time"

	"filechat/database"
	apperrors "filechat/errors"
	"filechat/web/types"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultCacheSize = 512

// Store is the slice of the persistence layer the cache sits in front of.
type Store interface {
	GetChats(ctx context.Context, userID uuid.UUID) ([]database.Chat, error)
	GetChat(ctx context.Context, userID, chatID uuid.UUID) (database.Chat, error)
	CreateChat(ctx context.Context, chat database.Chat) (database.Chat, error)
	UpdateChatTitle(ctx context.Context, userID, chatID uuid.UUID, title string) (database.Chat, error)
	UpdateChatMessages(ctx context.Context, userID, chatID uuid.UUID, messages []types.Message) (database.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error
	GetFile(ctx context.Context, userID, fileID uuid.UUID) (database.FileRecord, error)
}

// Cache is the single access layer for chat state. It keeps two kinds of
// entries in one keyed LRU: per-user chat lists and individual chats. Writes
// go straight to the store and the returned row replaces whatever the cache
// held, so the latest write wins. Reads are coalesced so concurrent misses
// on one key produce a single store query.
type Cache struct {
	store  Store
	data   *lru.Cache
	group  singleflight.Group
	retry  RetryConfig
	logger *zap.Logger
}

func New(store Store, retry RetryConfig, size int, logger *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	data, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, data: data, retry: retry, logger: logger}, nil
}

func listKey(userID uuid.UUID) string {
	return "chats/" + userID.String()
}

func chatKey(chatID uuid.UUID) string {
	return "chat/" + chatID.String()
}

// ListChats returns the user's chats, newest first. Served from cache when
// present; a miss loads from the store with bounded retry and fills the
// cache.
func (c *Cache) ListChats(ctx context.Context, userID uuid.UUID) ([]database.Chat, error) {
	if userID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrNoUserID, "list chats")
	}

	key := listKey(userID)
	if v, ok := c.data.Get(key); ok {
		return v.([]database.Chat), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		var chats []database.Chat
		err := c.withRetry(ctx, "list chats", func() error {
			var err error
			chats, err = c.store.GetChats(ctx, userID)
			return err
		})
		if err != nil {
			return nil, err
		}
		if chats == nil {
			chats = []database.Chat{}
		}
		c.data.Add(key, chats)
		return chats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]database.Chat), nil
}

// GetChat returns one chat owned by userID.
func (c *Cache) GetChat(ctx context.Context, userID, chatID uuid.UUID) (database.Chat, error) {
	if userID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrNoUserID, "get chat")
	}
	if chatID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidChatID, "get chat")
	}

	key := chatKey(chatID)
	if v, ok := c.data.Get(key); ok {
		chat := v.(database.Chat)
		if chat.UserID == userID {
			return chat, nil
		}
		// Cached under a different owner; fall through to the store, which
		// applies the ownership filter.
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		var chat database.Chat
		err := c.withRetry(ctx, "get chat", func() error {
			var err error
			chat, err = c.store.GetChat(ctx, userID, chatID)
			return err
		})
		if err != nil {
			return database.Chat{}, err
		}
		c.data.Add(key, chat)
		return chat, nil
	})
	if err != nil {
		return database.Chat{}, err
	}

	chat := v.(database.Chat)
	if chat.UserID != userID {
		// A coalesced load on the same key can hand back another caller's
		// row; never leak it across users.
		return database.Chat{}, apperrors.WrapError(apperrors.ErrChatNotFound, "get chat")
	}
	return chat, nil
}

// CreateChat inserts a new chat for userID. When fileID is set, the file's
// ownership is verified first and nothing is inserted if the check fails.
// The created chat is cached and prepended to the user's cached list.
func (c *Cache) CreateChat(ctx context.Context, userID uuid.UUID, title string, fileID *uuid.UUID) (database.Chat, error) {
	if userID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrNoUserID, "create chat")
	}
	if fileID != nil && *fileID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidFileID, "create chat")
	}

	if fileID != nil {
		if _, err := c.store.GetFile(ctx, userID, *fileID); err != nil {
			if apperrors.IsNotFound(err) {
				return database.Chat{}, apperrors.WrapError(apperrors.ErrFileAccessDenied, "create chat")
			}
			return database.Chat{}, classifyStoreError(err)
		}
	}

	now := time.Now()
	chat := database.Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		FileID:    fileID,
		Messages:  []types.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := c.store.CreateChat(ctx, chat)
	if err != nil {
		return database.Chat{}, classifyStoreError(err)
	}

	c.data.Add(chatKey(created.ID), created)
	c.prependToList(userID, created)
	return created, nil
}

// UpdateChatTitle renames a chat and refreshes both cache entries with the
// row the store returned.
func (c *Cache) UpdateChatTitle(ctx context.Context, userID, chatID uuid.UUID, title string) (database.Chat, error) {
	if userID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrNoUserID, "update chat title")
	}
	if chatID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidChatID, "update chat title")
	}
	if strings.TrimSpace(title) == "" {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidData, "empty chat title")
	}

	updated, err := c.store.UpdateChatTitle(ctx, userID, chatID, title)
	if err != nil {
		return database.Chat{}, classifyStoreError(err)
	}

	c.data.Add(chatKey(chatID), updated)
	c.replaceInList(userID, updated)
	return updated, nil
}

// AppendMessages appends msgs to the chat's stored history and refreshes
// both cache entries. The full history is written back, so the store always
// holds what the latest writer saw.
func (c *Cache) AppendMessages(ctx context.Context, userID, chatID uuid.UUID, msgs []types.Message) (database.Chat, error) {
	if userID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrNoUserID, "append messages")
	}
	if chatID == uuid.Nil {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidChatID, "append messages")
	}
	if len(msgs) == 0 {
		return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidData, "no messages to append")
	}
	for _, msg := range msgs {
		if !types.ValidRole(msg.Role) || strings.TrimSpace(msg.Content) == "" {
			return database.Chat{}, apperrors.WrapError(apperrors.ErrInvalidData, "malformed message")
		}
	}

	current, err := c.GetChat(ctx, userID, chatID)
	if err != nil {
		return database.Chat{}, err
	}

	history := make([]types.Message, 0, len(current.Messages)+len(msgs))
	history = append(history, current.Messages...)
	history = append(history, msgs...)

	updated, err := c.store.UpdateChatMessages(ctx, userID, chatID, history)
	if err != nil {
		return database.Chat{}, classifyStoreError(err)
	}

	c.data.Add(chatKey(chatID), updated)
	c.replaceInList(userID, updated)
	return updated, nil
}

// DeleteChat removes a chat from the store and drops it from both the chat
// cache and the user's cached list.
func (c *Cache) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.WrapError(apperrors.ErrNoUserID, "delete chat")
	}
	if chatID == uuid.Nil {
		return apperrors.WrapError(apperrors.ErrInvalidChatID, "delete chat")
	}

	if err := c.store.DeleteChat(ctx, userID, chatID); err != nil {
		return classifyStoreError(err)
	}

	c.data.Remove(chatKey(chatID))
	c.removeFromList(userID, chatID)
	return nil
}

// Purge empties the cache. The next read on any key reloads from the store.
func (c *Cache) Purge() {
	c.data.Purge()
}

// List manipulation below is copy-on-write: cached slices are never mutated
// in place, so readers holding a previous slice see a consistent snapshot.

func (c *Cache) prependToList(userID uuid.UUID, chat database.Chat) {
	key := listKey(userID)
	v, ok := c.data.Get(key)
	if !ok {
		return
	}
	existing := v.([]database.Chat)
	updated := make([]database.Chat, 0, len(existing)+1)
	updated = append(updated, chat)
	updated = append(updated, existing...)
	c.data.Add(key, updated)
}

func (c *Cache) replaceInList(userID uuid.UUID, chat database.Chat) {
	key := listKey(userID)
	v, ok := c.data.Get(key)
	if !ok {
		return
	}
	existing := v.([]database.Chat)
	updated := make([]database.Chat, len(existing))
	copy(updated, existing)
	for i := range updated {
		if updated[i].ID == chat.ID {
			updated[i] = chat
			break
		}
	}
	c.data.Add(key, updated)
}

func (c *Cache) removeFromList(userID, chatID uuid.UUID) {
	key := listKey(userID)
	v, ok := c.data.Get(key)
	if !ok {
		return
	}
	existing := v.([]database.Chat)
	updated := make([]database.Chat, 0, len(existing))
	for _, chat := range existing {
		if chat.ID != chatID {
			updated = append(updated, chat)
		}
	}
	c.data.Add(key, updated)
}
