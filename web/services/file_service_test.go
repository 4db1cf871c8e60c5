package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"filechat/database"
	apperrors "filechat/errors"
	"filechat/extract"
	"filechat/web/types"
	"filechat/youtube"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeFileStore struct {
	files      map[uuid.UUID]database.FileRecord
	createErr  error
	createCall int
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]database.FileRecord)}
}

func (s *fakeFileStore) CreateFile(ctx context.Context, file database.FileRecord) (database.FileRecord, error) {
	s.createCall++
	if s.createErr != nil {
		return database.FileRecord{}, s.createErr
	}
	s.files[file.ID] = file
	return file, nil
}

func (s *fakeFileStore) GetFile(ctx context.Context, userID, fileID uuid.UUID) (database.FileRecord, error) {
	file, ok := s.files[fileID]
	if !ok || file.UserID != userID {
		return database.FileRecord{}, apperrors.WrapError(apperrors.ErrFileNotFound, "get file")
	}
	return file, nil
}

func (s *fakeFileStore) GetFiles(ctx context.Context, userID uuid.UUID) ([]database.FileRecord, error) {
	var out []database.FileRecord
	for _, file := range s.files {
		if file.UserID == userID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	file, ok := s.files[fileID]
	if !ok || file.UserID != userID {
		return apperrors.WrapError(apperrors.ErrFileNotFound, "delete file")
	}
	delete(s.files, fileID)
	return nil
}

type fakeObjects struct {
	data    map[string][]byte
	puts    int
	removes int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{data: make(map[string][]byte)}
}

func (o *fakeObjects) Put(ctx context.Context, key string, data []byte, contentType string) error {
	o.puts++
	o.data[key] = append([]byte(nil), data...)
	return nil
}

func (o *fakeObjects) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := o.data[key]
	if !ok {
		return nil, apperrors.WrapError(apperrors.ErrFileNotFound, "get object")
	}
	return data, nil
}

func (o *fakeObjects) Remove(ctx context.Context, key string) error {
	o.removes++
	delete(o.data, key)
	return nil
}

type fakeFetcher struct {
	video *youtube.Video
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*youtube.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.video, nil
}

func newTestFileService(store *fakeFileStore, objects *fakeObjects, fetcher *fakeFetcher) *FileService {
	logger, _ := zap.NewDevelopment()
	return NewFileService(store, objects, extract.New(logger, 10000), fetcher, 10, logger)
}

func TestUploadTextFile(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objects := newFakeObjects()
	fs := newTestFileService(store, objects, &fakeFetcher{})

	userID := uuid.New()
	content := []byte("Meeting notes from Tuesday.\nBudget was approved.")

	record, err := fs.Upload(ctx, userID, "notes.txt", content)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if record.Kind != types.KindText {
		t.Errorf("Kind = %q, want %q", record.Kind, types.KindText)
	}
	if !strings.Contains(record.ContentText, "Budget was approved.") {
		t.Errorf("ContentText = %q, missing extracted text", record.ContentText)
	}
	if record.MimeType != "text/plain" {
		t.Errorf("MimeType = %q, want text/plain", record.MimeType)
	}
	if record.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, want %d", record.SizeBytes, len(content))
	}

	stored, err := objects.Get(ctx, record.ObjectKey)
	if err != nil {
		t.Fatalf("object missing under key %q: %v", record.ObjectKey, err)
	}
	if !bytes.Equal(stored, content) {
		t.Error("stored object differs from uploaded bytes")
	}
	if !strings.HasPrefix(record.ObjectKey, userID.String()+"/") {
		t.Errorf("ObjectKey = %q, want user-scoped prefix", record.ObjectKey)
	}
}

func TestUploadImageFile(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objects := newFakeObjects()
	fs := newTestFileService(store, objects, &fakeFetcher{})

	userID := uuid.New()
	imageBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

	record, err := fs.Upload(ctx, userID, "sunset photo.png", imageBytes)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if record.Kind != types.KindImage {
		t.Errorf("Kind = %q, want %q", record.Kind, types.KindImage)
	}
	if record.ContentText != "" {
		t.Errorf("ContentText = %q, want empty for images", record.ContentText)
	}
	if record.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", record.MimeType)
	}
	if record.Name != "sunset_photo.png" {
		t.Errorf("Name = %q, want sanitized filename", record.Name)
	}

	data, err := fs.ImageData(ctx, record)
	if err != nil {
		t.Fatalf("ImageData() error = %v", err)
	}
	if !bytes.Equal(data, imageBytes) {
		t.Error("ImageData() differs from uploaded bytes")
	}
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   uuid.UUID
		filename string
		data     []byte
		wantKind string
	}{
		{"no_user", uuid.Nil, "notes.txt", []byte("x"), apperrors.KindNoUserID},
		{"empty_filename", uuid.New(), "...", []byte("x"), apperrors.KindInvalidData},
		{"unsupported_extension", uuid.New(), "tool.exe", []byte("x"), apperrors.KindInvalidData},
		{"no_extension", uuid.New(), "README", []byte("x"), apperrors.KindInvalidData},
		{"empty_file", uuid.New(), "notes.txt", nil, apperrors.KindInvalidData},
		{"text_too_large", uuid.New(), "big.txt", bytes.Repeat([]byte("a"), MaxTextSize+1), apperrors.KindInvalidData},
		{"image_too_large", uuid.New(), "big.png", bytes.Repeat([]byte("a"), MaxImageSize+1), apperrors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeFileStore()
			objects := newFakeObjects()
			fs := newTestFileService(store, objects, &fakeFetcher{})

			_, err := fs.Upload(ctx, tt.userID, tt.filename, tt.data)
			if apperrors.Kind(err) != tt.wantKind {
				t.Errorf("Upload() kind = %v, want %v", apperrors.Kind(err), tt.wantKind)
			}
			if store.createCall != 0 {
				t.Errorf("CreateFile called %d times, want 0", store.createCall)
			}
			if objects.puts != 0 {
				t.Errorf("Put called %d times, want 0", objects.puts)
			}
		})
	}
}

func TestUploadRollsBackObjectOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	store.createErr = apperrors.WrapError(apperrors.ErrStoreUnavailable, "create file")
	objects := newFakeObjects()
	fs := newTestFileService(store, objects, &fakeFetcher{})

	_, err := fs.Upload(ctx, uuid.New(), "notes.txt", []byte("content"))
	if apperrors.Kind(err) != apperrors.KindStoreUnavailable {
		t.Fatalf("Upload() kind = %v, want %v", apperrors.Kind(err), apperrors.KindStoreUnavailable)
	}

	if objects.puts != 1 || objects.removes != 1 {
		t.Errorf("puts = %d, removes = %d, want 1 and 1", objects.puts, objects.removes)
	}
	if len(objects.data) != 0 {
		t.Error("object left behind after failed create")
	}
}

func TestAddYouTube(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	fetcher := &fakeFetcher{video: &youtube.Video{
		ID:         "dQw4w9WgXcQ",
		Title:      "Go Concurrency Patterns",
		Transcript: "Today we talk about channels and goroutines.",
	}}
	fs := newTestFileService(store, newFakeObjects(), fetcher)

	userID := uuid.New()
	record, err := fs.AddYouTube(ctx, userID, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("AddYouTube() error = %v", err)
	}

	if record.Kind != types.KindYouTube {
		t.Errorf("Kind = %q, want %q", record.Kind, types.KindYouTube)
	}
	if record.Name != "Go Concurrency Patterns" {
		t.Errorf("Name = %q, want video title", record.Name)
	}
	if record.ContentText != "Today we talk about channels and goroutines." {
		t.Errorf("ContentText = %q, want transcript", record.ContentText)
	}
	if record.ObjectKey != "" {
		t.Errorf("ObjectKey = %q, want empty for youtube entries", record.ObjectKey)
	}
}

func TestAddYouTubeUntitledVideo(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{video: &youtube.Video{ID: "dQw4w9WgXcQ", Transcript: "hello"}}
	fs := newTestFileService(newFakeFileStore(), newFakeObjects(), fetcher)

	record, err := fs.AddYouTube(ctx, uuid.New(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("AddYouTube() error = %v", err)
	}
	if record.Name != "YouTube video dQw4w9WgXcQ" {
		t.Errorf("Name = %q, want id-based fallback", record.Name)
	}
}

func TestAddYouTubeWithoutTranscript(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{err: youtube.ErrNoTranscript}
	fs := newTestFileService(newFakeFileStore(), newFakeObjects(), fetcher)

	_, err := fs.AddYouTube(ctx, uuid.New(), "https://youtu.be/dQw4w9WgXcQ")
	if apperrors.Kind(err) != apperrors.KindInvalidData {
		t.Errorf("AddYouTube() kind = %v, want %v", apperrors.Kind(err), apperrors.KindInvalidData)
	}
}

func TestDeleteRemovesRecordAndObject(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objects := newFakeObjects()
	fs := newTestFileService(store, objects, &fakeFetcher{})

	userID := uuid.New()
	record, err := fs.Upload(ctx, userID, "notes.txt", []byte("content"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if err := fs.Delete(ctx, userID, record.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok := store.files[record.ID]; ok {
		t.Error("record still present after delete")
	}
	if len(objects.data) != 0 {
		t.Error("object still present after delete")
	}
}

func TestDeleteOtherUsersFile(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objects := newFakeObjects()
	fs := newTestFileService(store, objects, &fakeFetcher{})

	owner := uuid.New()
	record, err := fs.Upload(ctx, owner, "notes.txt", []byte("content"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	err = fs.Delete(ctx, uuid.New(), record.ID)
	if apperrors.Kind(err) != apperrors.KindFileNotFound {
		t.Errorf("Delete() kind = %v, want %v", apperrors.Kind(err), apperrors.KindFileNotFound)
	}
	if _, ok := store.files[record.ID]; !ok {
		t.Error("record deleted by a non-owner")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "report.pdf", "report.pdf"},
		{"spaces", "my summer photo.png", "my_summer_photo.png"},
		{"traversal", "../../etc/passwd.txt", "etc_passwd.txt"},
		{"special_chars", "q3 (final) 50%.txt", "q3_final_50pct.txt"},
		{"dots_only", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
