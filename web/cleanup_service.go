package web

import (
	"context"
	"fmt"
	"time"

	"filechat/config"
	"filechat/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrphanStore provides the queries the cleanup sweep needs.
type OrphanStore interface {
	GetOrphanFiles(ctx context.Context, cutoff time.Time) ([]database.FileRecord, error)
	DeleteFilesByID(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ObjectRemover deletes stored file binaries.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

// CleanupService deletes orphaned file uploads: files no chat references
// that are older than the configured retention age.
type CleanupService struct {
	store   OrphanStore
	objects ObjectRemover
	logger  *zap.Logger
}

// NewCleanupService creates a new cleanup service instance
func NewCleanupService(store OrphanStore, objects ObjectRemover, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		store:   store,
		objects: objects,
		logger:  logger,
	}
}

// CleanupOrphanFiles finds and deletes unreferenced files older than maxAge.
// Returns the number of file rows deleted and any error encountered
func (cs *CleanupService) CleanupOrphanFiles(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoffTime := time.Now().Add(-maxAge)

	cs.logger.Info("Starting orphan file cleanup",
		zap.Time("cutoff_time", cutoffTime),
		zap.Duration("max_age", maxAge))

	// Get list of orphaned files
	orphans, err := cs.store.GetOrphanFiles(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to get orphan files: %w", err)
	}

	if len(orphans) == 0 {
		cs.logger.Debug("No orphan files found")
		return 0, nil
	}

	cs.logger.Info("Found orphan files to clean up",
		zap.Int("count", len(orphans)))

	// Remove each object from storage before touching its row. A row is only
	// deleted once its object is gone; failures stay behind for the next sweep.
	ids := make([]uuid.UUID, 0, len(orphans))
	for _, file := range orphans {
		if file.ObjectKey != "" {
			if err := cs.objects.Remove(ctx, file.ObjectKey); err != nil {
				cs.logger.Error("Failed to remove orphan file object",
					zap.Error(err),
					zap.String("file_id", file.ID.String()),
					zap.String("object_key", file.ObjectKey))
				// Continue with other files even if one fails
				continue
			}
		}
		ids = append(ids, file.ID)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := cs.store.DeleteFilesByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan file rows: %w", err)
	}

	cs.logger.Info("Orphan file cleanup completed",
		zap.Int64("files_deleted", deleted),
		zap.Int("files_skipped", len(orphans)-len(ids)))

	return int(deleted), nil
}

// StartFileCleanup runs the orphan file sweep on a fixed interval until ctx
// is cancelled. Disabled entirely when CLEANUP_ENABLED is false.
func StartFileCleanup(ctx context.Context, cfg *config.Config, cleanup *CleanupService, logger *zap.Logger) {
	if !cfg.CleanupEnabled {
		logger.Info("File cleanup disabled")
		return
	}

	logger.Info("File cleanup scheduled",
		zap.Duration("interval", cfg.CleanupInterval),
		zap.Duration("retention_age", cfg.FileRetentionAge))

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := cleanup.CleanupOrphanFiles(ctx, cfg.FileRetentionAge); err != nil {
				logger.Error("Orphan file cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
