package handlers

import (
	"net/http"

	apperrors "filechat/errors"
	"filechat/web/middleware"
	"filechat/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chats  *services.ChatService
	logger *zap.Logger
}

type CreateChatRequest struct {
	Title  string `json:"title"`
	FileID string `json:"file_id"`
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

func NewChatHandler(chats *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chats:  chats,
		logger: logger,
	}
}

// requireUserID reads the authenticated user set by the auth middleware.
// A missing id means the route was wired without it; the request cannot
// proceed either way.
func requireUserID(c *gin.Context, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondWithAppError(c, apperrors.ErrNoUserID, logger)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *ChatHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	chats, err := h.chats.List(c.Request.Context(), userID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("user_id", userID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var fileID *uuid.UUID
	if req.FileID != "" {
		id, err := uuid.Parse(req.FileID)
		if err != nil {
			respondWithAppError(c, apperrors.WrapError(apperrors.ErrInvalidFileID, "create chat"), h.logger)
			return
		}
		fileID = &id
	}

	chat, err := h.chats.Create(c.Request.Context(), userID, req.Title, fileID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("user_id", userID.String()))
		return
	}

	h.logger.Info("Chat created",
		zap.String("chat_id", chat.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("has_file", fileID != nil))

	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

func (h *ChatHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseChatID(c, h.logger)
	if !ok {
		return
	}

	chat, err := h.chats.Get(c.Request.Context(), userID, chatID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("chat_id", chatID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *ChatHandler) Rename(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseChatID(c, h.logger)
	if !ok {
		return
	}

	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	chat, err := h.chats.Rename(c.Request.Context(), userID, chatID, req.Title)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("chat_id", chatID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseChatID(c, h.logger)
	if !ok {
		return
	}

	if err := h.chats.Delete(c.Request.Context(), userID, chatID); err != nil {
		respondWithAppError(c, err, h.logger, zap.String("chat_id", chatID.String()))
		return
	}

	h.logger.Info("Chat deleted",
		zap.String("chat_id", chatID.String()),
		zap.String("user_id", userID.String()))

	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseChatID(c, h.logger)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chats.SendMessage(c.Request.Context(), userID, chatID, req.Message)
	if err != nil {
		respondWithAppError(c, err, h.logger,
			zap.String("chat_id", chatID.String()),
			zap.String("user_id", userID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":    result.Reply,
		"rendered": result.Rendered,
		"chat":     result.Chat,
	})
}

func parseChatID(c *gin.Context, logger *zap.Logger) (uuid.UUID, bool) {
	chatID, err := uuid.Parse(c.Param("chatID"))
	if err != nil {
		respondWithAppError(c, apperrors.WrapError(apperrors.ErrInvalidChatID, "parse chat id"), logger)
		return uuid.Nil, false
	}
	return chatID, true
}
