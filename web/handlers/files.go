package handlers

import (
	"io"
	"net/http"
	"strings"

	apperrors "filechat/errors"
	"filechat/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FileHandler struct {
	files    *services.FileService
	maxBytes int64
	logger   *zap.Logger
}

func NewFileHandler(files *services.FileService, maxUploadMB int, logger *zap.Logger) *FileHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &FileHandler{
		files:    files,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		logger:   logger,
	}
}

type AddYouTubeRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

// Upload accepts either a multipart "file" field or a JSON body carrying a
// "youtube_url". Exactly one of the two must be present.
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req AddYouTubeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.YouTubeURL == "" {
			respondWithClientError(c, http.StatusBadRequest, "provide a youtube_url")
			return
		}
		record, err := h.files.AddYouTube(c.Request.Context(), userID, req.YouTubeURL)
		if err != nil {
			respondWithAppError(c, err, h.logger, zap.String("user_id", userID.String()))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"file": record})
		return
	}

	if youtubeURL := c.PostForm("youtube_url"); youtubeURL != "" {
		record, err := h.files.AddYouTube(c.Request.Context(), userID, youtubeURL)
		if err != nil {
			respondWithAppError(c, err, h.logger, zap.String("user_id", userID.String()))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"file": record})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "provide a file or a youtube_url")
		return
	}
	if fileHeader.Size > h.maxBytes {
		respondWithClientError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err, "could not read uploaded file", h.logger)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxBytes+1))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err, "could not read uploaded file", h.logger)
		return
	}
	if int64(len(data)) > h.maxBytes {
		respondWithClientError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	record, err := h.files.Upload(c.Request.Context(), userID, fileHeader.Filename, data)
	if err != nil {
		respondWithAppError(c, err, h.logger,
			zap.String("user_id", userID.String()),
			zap.String("filename", fileHeader.Filename))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"file": record})
}

func (h *FileHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	files, err := h.files.List(c.Request.Context(), userID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("user_id", userID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *FileHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	fileID, ok := parseFileID(c, h.logger)
	if !ok {
		return
	}

	record, err := h.files.Get(c.Request.Context(), userID, fileID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("file_id", fileID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"file": record})
}

func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}
	fileID, ok := parseFileID(c, h.logger)
	if !ok {
		return
	}

	if err := h.files.Delete(c.Request.Context(), userID, fileID); err != nil {
		respondWithAppError(c, err, h.logger, zap.String("file_id", fileID.String()))
		return
	}

	h.logger.Info("File deleted",
		zap.String("file_id", fileID.String()),
		zap.String("user_id", userID.String()))

	c.Status(http.StatusNoContent)
}

func parseFileID(c *gin.Context, logger *zap.Logger) (uuid.UUID, bool) {
	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		respondWithAppError(c, apperrors.WrapError(apperrors.ErrInvalidFileID, "parse file id"), logger)
		return uuid.Nil, false
	}
	return fileID, true
}
