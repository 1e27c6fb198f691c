package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/utils"
	"go.opentelemetry.io/otel/attribute"
)

// UploadedFile describes a stored design file. FileURL is what order
// creation attaches; Reference is the raw blob reference.
type UploadedFile struct {
	FileName  string `json:"file_name"`
	FileURL   string `json:"file_url"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	Reference string `json:"reference"`
}

// UploadService validates and stores design files
type UploadService interface {
	Upload(ctx context.Context, actor *policy.Actor, fileHeader *multipart.FileHeader) (*UploadedFile, error)
	// SignedURL resolves a blob reference to a fresh, time limited URL
	SignedURL(ctx context.Context, actor *policy.Actor, ref string) (string, error)
}

// BlobUploadService implements UploadService on top of a BlobStore
type BlobUploadService struct {
	store BlobStore
}

var uploadServiceInstance UploadService

// InitUploadService initializes the upload service with the given store
func InitUploadService(store BlobStore) UploadService {
	uploadServiceInstance = NewUploadService(store)
	return uploadServiceInstance
}

// NewUploadService creates an upload service without touching the global instance
func NewUploadService(store BlobStore) *BlobUploadService {
	return &BlobUploadService{store: store}
}

// GetUploadService returns the initialized upload service instance
func GetUploadService() UploadService {
	return uploadServiceInstance
}

// SetUploadService sets the upload service instance (primarily for testing)
func SetUploadService(service UploadService) {
	uploadServiceInstance = service
}

// Upload checks size and type before the store sees any bytes
func (s *BlobUploadService) Upload(ctx context.Context, actor *policy.Actor, fileHeader *multipart.FileHeader) (*UploadedFile, error) {
	ctx, span := tracer.Start(ctx, "UploadService.Upload")
	defer span.End()

	if err := policy.Authorize(actor, policy.ActionUploadFile, nil); err != nil {
		return nil, err
	}

	contentType, err := utils.ValidateDesignFile(fileHeader)
	if err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			return nil, apperror.Validation(fileErr.Code, fileErr.Message)
		}
		return nil, err
	}

	content, err := readLimited(fileHeader)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.Put(ctx, content, fileHeader.Filename, contentType)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("blob.reference", ref), attribute.Int("blob.size", len(content)))

	return &UploadedFile{
		FileName:  fileHeader.Filename,
		FileURL:   PublicPath(ref),
		FileType:  contentType,
		FileSize:  int64(len(content)),
		Reference: ref,
	}, nil
}

// readLimited reads the part without trusting the declared size
func readLimited(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, utils.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(content) > utils.MaxFileSize {
		return nil, apperror.Validation("FILE_TOO_LARGE", "File size exceeds maximum allowed size of 10 MB")
	}
	return content, nil
}

// SignedURL returns a URL for ref valid for one hour
func (s *BlobUploadService) SignedURL(ctx context.Context, actor *policy.Actor, ref string) (string, error) {
	if err := policy.Authorize(actor, policy.ActionReadFile, nil); err != nil {
		return "", err
	}
	if ref == "" {
		return "", apperror.NotFound("FILE_NOT_FOUND", "File not found")
	}

	signed, err := s.store.URL(ctx, ref)
	if err != nil {
		if appErr := apperror.From(err); appErr.Kind != apperror.KindInternal {
			return "", appErr
		}
		return "", apperror.Wrap(apperror.KindNotFound, "FILE_NOT_FOUND", "File not found", err)
	}
	return signed, nil
}
