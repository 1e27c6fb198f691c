package utils

import (
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
)

// allowedContentTypes are the MIME types accepted for design files
var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"application/dwg":    true,
	"application/step":   true,
	"application/stp":    true,
	"application/iges":   true,
	"application/igs":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// cadExtensions maps CAD file extensions to the MIME type recorded for them.
// Browsers rarely know these formats and send an empty or generic type.
var cadExtensions = map[string]string{
	".dwg":  "application/dwg",
	".step": "application/step",
	".stp":  "application/stp",
	".iges": "application/iges",
	".igs":  "application/igs",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateDesignFile checks size and type of an uploaded design file and
// returns the content type to store it under
func ValidateDesignFile(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", &FileUploadError{Code: "NO_FILE", Message: "No file uploaded"}
	}

	if fileHeader.Size > MaxFileSize {
		return "", &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	contentType, ok := ResolveContentType(fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if !ok {
		return "", &FileUploadError{
			Code:    "INVALID_FILE_TYPE",
			Message: "File type not supported",
		}
	}
	return contentType, nil
}

// ResolveContentType normalizes declared and reports whether the file is
// allowed. An allowlisted declared type wins; otherwise a CAD extension is
// accepted whatever type the client sent.
func ResolveContentType(fileName, declared string) (string, bool) {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}

	if allowedContentTypes[contentType] {
		return contentType, true
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if cadType, ok := cadExtensions[ext]; ok {
		return cadType, true
	}
	return contentType, false
}

// SafeFileName strips directories and characters that are unsafe in
// storage keys and paths
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return -1
		case r < 0x20:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." || name == "" {
		return "file"
	}
	return name
}
