package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kendall-kelly/manuorder-api/apperror"
	appConfig "github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/utils"
	"go.uber.org/zap"
)

// LocalPathPrefix starts every reference produced by the local store
const LocalPathPrefix = "/uploads/"

// FilesPathPrefix is the authenticated route that redirects to a signed URL
const FilesPathPrefix = "/api/v1/files/"

// BlobStore stores design file bytes. References are opaque to callers and
// resolve to a time limited URL through URL.
type BlobStore interface {
	Put(ctx context.Context, content []byte, fileName, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

var (
	blobStoreInstance  BlobStore
	localStoreInstance *LocalBlobStore
)

// InitBlobStore builds the configured store. With S3 credentials the local
// store only takes over when S3 fails.
func InitBlobStore(ctx context.Context, cfg *appConfig.Config) BlobStore {
	local := NewLocalBlobStore(cfg.UploadDir)
	localStoreInstance = local
	blobStoreInstance = local

	if cfg.S3Enabled() {
		primary, err := NewS3BlobStore(ctx, cfg)
		if err != nil {
			logger.Warn("S3 unavailable, storing uploads locally", zap.Error(err))
		} else {
			blobStoreInstance = NewFallbackBlobStore(primary, local)
		}
	}
	return blobStoreInstance
}

// GetBlobStore returns the initialized blob store instance
func GetBlobStore() BlobStore {
	return blobStoreInstance
}

// SetBlobStore sets the blob store instance (primarily for testing)
func SetBlobStore(store BlobStore) {
	blobStoreInstance = store
}

// GetLocalBlobStore returns the store serving /uploads/
func GetLocalBlobStore() *LocalBlobStore {
	return localStoreInstance
}

// SetLocalBlobStore sets the local store instance (primarily for testing)
func SetLocalBlobStore(store *LocalBlobStore) {
	localStoreInstance = store
}

// PublicPath turns a reference into the path clients fetch the file from
func PublicPath(ref string) string {
	if ref == "" || strings.HasPrefix(ref, LocalPathPrefix) {
		return ref
	}
	return FilesPathPrefix + url.PathEscape(ref)
}

// IsPublicPath reports whether p is a path PublicPath can produce, that is a
// file served by this API rather than an arbitrary URL
func IsPublicPath(p string) bool {
	for _, prefix := range []string{FilesPathPrefix, LocalPathPrefix} {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			return rest != "" && !slices.Contains(strings.Split(rest, "/"), "..")
		}
	}
	return false
}

// LocalBlobStore writes files below a directory served at /uploads/
type LocalBlobStore struct {
	dir string
	now func() time.Time
}

// NewLocalBlobStore creates a store rooted at dir
func NewLocalBlobStore(dir string) *LocalBlobStore {
	return &LocalBlobStore{dir: dir, now: time.Now}
}

// Put writes content to <dir>/<unix millis>-<name> and returns /uploads/<file>
func (s *LocalBlobStore) Put(ctx context.Context, content []byte, fileName, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := utils.SafeFileName(fileName)
	ts := s.now().UnixMilli()
	for {
		filename := fmt.Sprintf("%d-%s", ts, name)
		f, err := os.OpenFile(filepath.Join(s.dir, filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			ts++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create destination file: %w", err)
		}

		_, writeErr := f.Write(content)
		closeErr := f.Close()
		if writeErr != nil || closeErr != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("failed to save file: %w", errors.Join(writeErr, closeErr))
		}
		return LocalPathPrefix + filename, nil
	}
}

// URL returns the static path, local files need no signing
func (s *LocalBlobStore) URL(_ context.Context, ref string) (string, error) {
	if _, err := s.filename(ref); err != nil {
		return "", err
	}
	return ref, nil
}

// Path resolves a file name below the uploads root, refusing anything that
// would leave it
func (s *LocalBlobStore) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", apperror.Validation("INVALID_FILENAME", "Invalid filename")
	}
	return filepath.Join(s.dir, filename), nil
}

func (s *LocalBlobStore) filename(ref string) (string, error) {
	if !strings.HasPrefix(ref, LocalPathPrefix) {
		return "", apperror.NotFound("FILE_NOT_FOUND", "File not found")
	}
	return s.Path(strings.TrimPrefix(ref, LocalPathPrefix))
}

// FallbackBlobStore writes to primary and degrades to fallback when primary
// fails. Both produce references URL can resolve.
type FallbackBlobStore struct {
	primary  BlobStore
	fallback *LocalBlobStore
}

// NewFallbackBlobStore combines a primary store with a local fallback
func NewFallbackBlobStore(primary BlobStore, fallback *LocalBlobStore) *FallbackBlobStore {
	return &FallbackBlobStore{primary: primary, fallback: fallback}
}

func (s *FallbackBlobStore) Put(ctx context.Context, content []byte, fileName, contentType string) (string, error) {
	ref, err := s.primary.Put(ctx, content, fileName, contentType)
	if err == nil {
		return ref, nil
	}

	logger.Warn("primary upload failed, falling back to local storage",
		zap.String("file_name", fileName),
		zap.Error(err))

	// The primary may have used up the request deadline
	ref, err = s.fallback.Put(context.WithoutCancel(ctx), content, fileName, contentType)
	if err != nil {
		return "", apperror.Internal(fmt.Errorf("local fallback upload: %w", err))
	}
	return ref, nil
}

func (s *FallbackBlobStore) URL(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, LocalPathPrefix) {
		return s.fallback.URL(ctx, ref)
	}
	return s.primary.URL(ctx, ref)
}
