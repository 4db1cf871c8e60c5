package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"filechat/database"
	apperrors "filechat/errors"
	"filechat/extract"
	"filechat/storage"
	"filechat/web/types"
	"filechat/youtube"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxImageSize = 5 * 1024 * 1024 // 5MB
	MaxTextSize  = 1 * 1024 * 1024 // 1MB
)

// FileStore is the slice of the database layer the file service needs.
// *database.PostgresStore satisfies it.
type FileStore interface {
	CreateFile(ctx context.Context, file database.FileRecord) (database.FileRecord, error)
	GetFile(ctx context.Context, userID, fileID uuid.UUID) (database.FileRecord, error)
	GetFiles(ctx context.Context, userID uuid.UUID) ([]database.FileRecord, error)
	DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error
}

// ObjectStorage holds uploaded binaries. *storage.ObjectStore satisfies it.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// TranscriptFetcher resolves a YouTube link to its title and transcript.
// *youtube.Client satisfies it.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*youtube.Video, error)
}

type FileService struct {
	store     FileStore
	objects   ObjectStorage
	extractor *extract.Extractor
	youtube   TranscriptFetcher
	maxPDF    int64
	logger    *zap.Logger
}

func NewFileService(
	store FileStore,
	objects ObjectStorage,
	extractor *extract.Extractor,
	youtubeClient TranscriptFetcher,
	maxUploadMB int,
	logger *zap.Logger,
) *FileService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &FileService{
		store:     store,
		objects:   objects,
		extractor: extractor,
		youtube:   youtubeClient,
		maxPDF:    int64(maxUploadMB) * 1024 * 1024,
		logger:    logger,
	}
}

// Upload validates an uploaded file, extracts its text content, stores the
// binary in object storage, and records it for the user. The returned record
// carries the kind later used to steer the model's context instruction.
func (fs *FileService) Upload(ctx context.Context, userID uuid.UUID, filename string, data []byte) (*database.FileRecord, error) {
	if userID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrNoUserID, "upload file")
	}

	sanitized := sanitizeFilename(filename)
	if sanitized == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidData, "invalid or unsafe filename")
	}

	ext := strings.ToLower(filepath.Ext(sanitized))
	kind, ok := kindForExtension(ext)
	if !ok {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidData, "unsupported file type %q", ext)
	}
	if len(data) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidData, "uploaded file is empty")
	}
	if err := fs.checkSize(kind, int64(len(data))); err != nil {
		return nil, err
	}

	var contentText string
	switch kind {
	case types.KindPDF:
		text, err := fs.extractor.PDFText(data)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrInvalidData, "could not read pdf")
		}
		contentText = text
	case types.KindText:
		contentText = fs.extractor.PlainText(data)
	case types.KindImage:
		// Image bytes go to the model directly; there is no text to extract.
	}

	fileID := uuid.New()
	objectKey := storage.ObjectKey(userID, fileID, sanitized)
	if err := fs.objects.Put(ctx, objectKey, data, contentTypeForExtension(ext)); err != nil {
		return nil, err
	}

	record, err := fs.store.CreateFile(ctx, database.FileRecord{
		ID:          fileID,
		UserID:      userID,
		Name:        sanitized,
		Kind:        kind,
		ObjectKey:   objectKey,
		ContentText: contentText,
		MimeType:    contentTypeForExtension(ext),
		SizeBytes:   int64(len(data)),
		CreatedAt:   time.Now(),
	})
	if err != nil {
		// Roll the object back so storage does not accumulate untracked blobs.
		if rmErr := fs.objects.Remove(ctx, objectKey); rmErr != nil {
			fs.logger.Warn("Failed to remove object after create failure",
				zap.Error(rmErr),
				zap.String("object_key", objectKey))
		}
		return nil, err
	}

	fs.logger.Info("File uploaded successfully",
		zap.String("filename", sanitized),
		zap.String("kind", kind),
		zap.String("user_id", userID.String()),
		zap.Int("size_bytes", len(data)))

	return &record, nil
}

// AddYouTube fetches the transcript for a YouTube link and records it as a
// file of kind youtube. No binary is stored; the transcript itself is the
// content.
func (fs *FileService) AddYouTube(ctx context.Context, userID uuid.UUID, rawURL string) (*database.FileRecord, error) {
	if userID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrNoUserID, "add youtube video")
	}

	video, err := fs.youtube.Fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, youtube.ErrNoTranscript) {
			return nil, apperrors.WrapError(apperrors.ErrInvalidData, "video has no transcript")
		}
		return nil, err
	}

	name := strings.TrimSpace(video.Title)
	if name == "" {
		name = "YouTube video " + video.ID
	}

	transcript := fs.extractor.Truncate(video.Transcript)

	record, err := fs.store.CreateFile(ctx, database.FileRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Kind:        types.KindYouTube,
		ContentText: transcript,
		MimeType:    "text/plain",
		SizeBytes:   int64(len(transcript)),
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	fs.logger.Info("YouTube transcript stored",
		zap.String("video_id", video.ID),
		zap.String("title", name),
		zap.String("user_id", userID.String()))

	return &record, nil
}

// Get returns one of the user's files.
func (fs *FileService) Get(ctx context.Context, userID, fileID uuid.UUID) (*database.FileRecord, error) {
	if userID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrNoUserID, "get file")
	}
	if fileID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrInvalidFileID, "get file")
	}
	record, err := fs.store.GetFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the user's files, newest first.
func (fs *FileService) List(ctx context.Context, userID uuid.UUID) ([]database.FileRecord, error) {
	if userID == uuid.Nil {
		return nil, apperrors.WrapError(apperrors.ErrNoUserID, "list files")
	}
	return fs.store.GetFiles(ctx, userID)
}

// Delete removes a file's record and its stored object. The object removal
// is best effort; the cleanup pass catches anything left behind.
func (fs *FileService) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.WrapError(apperrors.ErrNoUserID, "delete file")
	}
	if fileID == uuid.Nil {
		return apperrors.WrapError(apperrors.ErrInvalidFileID, "delete file")
	}

	record, err := fs.store.GetFile(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if record.ObjectKey != "" {
		if err := fs.objects.Remove(ctx, record.ObjectKey); err != nil {
			fs.logger.Warn("Failed to remove stored object, leaving for cleanup",
				zap.Error(err),
				zap.String("object_key", record.ObjectKey))
		}
	}

	return fs.store.DeleteFile(ctx, userID, fileID)
}

// ImageData loads the stored binary for an image file.
func (fs *FileService) ImageData(ctx context.Context, record *database.FileRecord) ([]byte, error) {
	if record.Kind != types.KindImage || record.ObjectKey == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidData, "file has no image data")
	}
	return fs.objects.Get(ctx, record.ObjectKey)
}

func (fs *FileService) checkSize(kind string, size int64) error {
	var limit int64
	switch kind {
	case types.KindPDF:
		limit = fs.maxPDF
	case types.KindImage:
		limit = MaxImageSize
	default:
		limit = MaxTextSize
	}
	if size > limit {
		return apperrors.WrapErrorf(apperrors.ErrInvalidData, "file too large, maximum is %dMB", limit/(1024*1024))
	}
	return nil
}

func kindForExtension(ext string) (string, bool) {
	switch ext {
	case ".pdf":
		return types.KindPDF, true
	case ".txt", ".md", ".csv", ".log":
		return types.KindText, true
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return types.KindImage, true
	}
	return "", false
}

func contentTypeForExtension(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	default:
		return "text/plain"
	}
}

// sanitizeFilename sanitizes user-provided filenames for safe storage.
func sanitizeFilename(filename string) string {
	// Trim leading/trailing spaces and dots
	sanitized := strings.Trim(filename, " .")

	// Remove path traversal attempts
	sanitized = strings.ReplaceAll(sanitized, "..", "")

	// Preserve extension
	ext := filepath.Ext(sanitized)
	nameWithoutExt := strings.TrimSuffix(sanitized, ext)

	// Replace special characters with safe alternatives
	nameWithoutExt = replaceSpecialChars(nameWithoutExt)

	// Reconstruct with original extension
	sanitized = nameWithoutExt + ext

	// Limit total length to 255 characters
	if len(sanitized) > 255 {
		// Truncate name portion, preserve extension
		maxNameLen := 255 - len(ext)
		if maxNameLen > 0 {
			sanitized = nameWithoutExt[:maxNameLen] + ext
		} else {
			sanitized = sanitized[:255]
		}
	}

	return sanitized
}

func replaceSpecialChars(s string) string {
	// Replace common special chars with readable alternatives
	s = strings.ReplaceAll(s, "%", "pct")
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, " ", "_")

	// Replace filesystem-unsafe characters with underscore
	// These are problematic across Windows, Linux, macOS
	unsafeChars := []string{
		"<", ">", ":", "\"", "/", "\\", "|", "?", "*",
		"(", ")", "[", "]", "{", "}", "'", ",", ";", "!",
		"@", "#", "$", "^", "`", "~", "+", "=",
	}

	for _, char := range unsafeChars {
		s = strings.ReplaceAll(s, char, "_")
	}

	// Collapse multiple underscores to single
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}

	// Trim leading/trailing underscores
	s = strings.Trim(s, "_")

	return s
}
