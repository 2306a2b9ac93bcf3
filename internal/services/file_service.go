package services

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// DefaultMaxUploadBytes is the per-file limit when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// AllowedExtensions lists the accepted upload extensions, lower-case.
var AllowedExtensions = map[string]bool{
	".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
	".xls": true, ".xlsx": true,
}

// NewFile describes one upload.
type NewFile struct {
	Name        string
	Body        io.Reader
	UploadedBy  string
	RelatedType string
	RelatedID   string
}

// FileService stores uploads in a local directory and their metadata in
// the database. Files are served back by id, never by their stored name.
type FileService struct {
	DB       *gorm.DB
	Dir      string
	MaxBytes int64

	// URLPrefix is prepended to "/files/<id>/download" in FileUpload.URL.
	URLPrefix string
}

// NewFileService constructs a FileService rooted at dir.
func NewFileService(db *gorm.DB, dir string, maxBytes int64, urlPrefix string) *FileService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FileService{DB: db, Dir: dir, MaxBytes: maxBytes, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Save writes the upload to disk and records it. Oversized bodies yield
// ErrFileTooLarge and disallowed extensions ErrFileType; neither leaves a
// file behind.
func (s *FileService) Save(ctx context.Context, in NewFile) (*domain.FileUpload, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Save", trace.WithAttributes(attribute.String("file.name", in.Name)))
	defer span.End()

	name := filepath.Base(strings.TrimSpace(in.Name))
	if name == "" || name == "." || name == string(filepath.Separator) || in.Body == nil {
		return nil, ErrMissingField
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !AllowedExtensions[ext] {
		return nil, ErrFileType
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	stored := id + ext
	path := filepath.Join(s.Dir, stored)

	size, err := s.write(path, in.Body)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	mt := mime.TypeByExtension(ext)
	if mt == "" {
		mt = "application/octet-stream"
	}
	f := &domain.FileUpload{
		ID:           id,
		OriginalName: clip(name, 255),
		StoredName:   stored,
		MimeType:     mt,
		Size:         size,
		URL:          s.URLPrefix + "/files/" + id + "/download",
		UploadedBy:   strings.TrimSpace(in.UploadedBy),
		RelatedType:  strings.TrimSpace(in.RelatedType),
		RelatedID:    strings.TrimSpace(in.RelatedID),
	}
	if err := repo.CreateFileUpload(ctx, s.DB, f); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	span.SetAttributes(attribute.String("file.id", id), attribute.Int64("file.size", size))
	return f, nil
}

func (s *FileService) write(path string, body io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// One extra byte tells an exact-limit body from an oversized one.
	n, err := io.Copy(out, io.LimitReader(body, s.MaxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if n > s.MaxBytes {
		return 0, ErrFileTooLarge
	}
	return n, nil
}

// Get returns upload metadata by id.
func (s *FileService) Get(ctx context.Context, id string) (*domain.FileUpload, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("file.id", id)))
	defer span.End()

	f, err := repo.GetFileUpload(ctx, s.DB, id)
	return f, mapNotFound(err, ErrFileNotFound)
}

// ListRelated returns the uploads attached to one entity.
func (s *FileService) ListRelated(ctx context.Context, relatedType, relatedID string) ([]domain.FileUpload, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "ListRelated",
		trace.WithAttributes(attribute.String("related.type", relatedType), attribute.String("related.id", relatedID)),
	)
	defer span.End()

	if relatedType == "" || relatedID == "" {
		return nil, ErrMissingField
	}
	return repo.ListFilesByRelated(ctx, s.DB, relatedType, relatedID)
}

// Path returns the metadata and on-disk path of an upload.
func (s *FileService) Path(ctx context.Context, id string) (*domain.FileUpload, string, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(s.Dir, f.StoredName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrFileNotFound
	} else if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// Delete removes the metadata, then the stored file. A missing file on
// disk is only logged.
func (s *FileService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("file.id", id)))
	defer span.End()

	f, err := repo.GetFileUpload(ctx, s.DB, id)
	if err != nil {
		return mapNotFound(err, ErrFileNotFound)
	}
	if err := repo.DeleteFileUpload(ctx, s.DB, id); err != nil {
		return mapNotFound(err, ErrFileNotFound)
	}
	if err := os.Remove(filepath.Join(s.Dir, f.StoredName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Ctx(ctx).Warn().Err(err).Str("file_id", id).Msg("stored file not removed")
	}
	return nil
}
