package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "filechat/errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// FileRecord represents an uploaded file tracked in the database. The binary
// lives in object storage under ObjectKey; ContentText holds the extracted
// text injected into conversations. Image uploads keep ContentText empty.
type FileRecord struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	ObjectKey   string    `json:"-"`
	ContentText string    `json:"-"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

const fileColumns = `id, user_id, name, kind, object_key, content_text, mime_type, size_bytes, created_at`

// CreateFile inserts a new file record.
func (s *PostgresStore) CreateFile(ctx context.Context, file FileRecord) (FileRecord, error) {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO files (id, user_id, name, kind, object_key, content_text, mime_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + fileColumns

	result, err := scanFile(s.DB.QueryRowContext(ctx, query,
		file.ID,
		file.UserID,
		file.Name,
		file.Kind,
		file.ObjectKey,
		file.ContentText,
		file.MimeType,
		file.SizeBytes,
		file.CreatedAt,
	))
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to create file record: %w", err)
	}
	return result, nil
}

// GetFile retrieves a single file. Rows owned by a different user are
// indistinguishable from missing rows.
func (s *PostgresStore) GetFile(ctx context.Context, userID, fileID uuid.UUID) (FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE id = $1 AND user_id = $2
	`
	file, err := scanFile(s.DB.QueryRowContext(ctx, query, fileID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, apperrors.WrapError(apperrors.ErrFileNotFound, "get file")
		}
		return FileRecord{}, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

// GetFiles returns all files owned by userID, newest first.
func (s *PostgresStore) GetFiles(ctx context.Context, userID uuid.UUID) ([]FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}

	return files, nil
}

// GetOrphanFiles returns files older than cutoff that no chat references.
// Used by the cleanup service to reclaim storage.
func (s *PostgresStore) GetOrphanFiles(ctx context.Context, cutoff time.Time) ([]FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		WHERE f.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM chats c WHERE c.file_id = f.id)
		ORDER BY f.created_at ASC
	`
	rows, err := s.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}

	return files, nil
}

// DeleteFilesByID removes the given file rows in one statement and returns
// how many were deleted.
func (s *PostgresStore) DeleteFilesByID(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = ANY($1::uuid[])`, pq.Array(idStrs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete files: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFile removes one file row owned by userID.
func (s *PostgresStore) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND user_id = $2`, fileID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.WrapError(apperrors.ErrFileNotFound, "delete file")
	}
	return nil
}

func scanFile(row rowScanner) (FileRecord, error) {
	var file FileRecord
	if err := row.Scan(
		&file.ID,
		&file.UserID,
		&file.Name,
		&file.Kind,
		&file.ObjectKey,
		&file.ContentText,
		&file.MimeType,
		&file.SizeBytes,
		&file.CreatedAt,
	); err != nil {
		return FileRecord{}, err
	}
	return file, nil
}

// Helper functions for UUID <-> sql.NullString conversion
func uuidToNullString(u *uuid.UUID) sql.NullString {
	if u == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: u.String(), Valid: true}
}

func nullStringToUUID(ns sql.NullString) *uuid.UUID {
	if !ns.Valid {
		return nil
	}
	u, err := uuid.Parse(ns.String)
	if err != nil {
		return nil
	}
	return &u
}
