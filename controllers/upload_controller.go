package controllers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/services"
	"github.com/kendall-kelly/manuorder-api/utils"
)

// multipartOverhead leaves room for part headers around a maximum size file
const multipartOverhead = 1 << 20

// UploadFile handles POST /api/v1/uploads - stores one design file sent as
// multipart field "file"
func UploadFile(c *gin.Context) {
	if !authorizeRole(c, "uploadFile", policy.ActionUploadFile) {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(c, "uploadFile", apperror.Validation("FILE_TOO_LARGE", "File size exceeds maximum allowed size of 10 MB"))
		return
	case err != nil && !errors.Is(err, http.ErrMissingFile):
		respondError(c, "uploadFile", apperror.Validation("INVALID_REQUEST", "Request must be multipart/form-data with a file field"))
		return
	}

	uploaded, err := services.GetUploadService().Upload(c.Request.Context(), middleware.GetActor(c), fileHeader)
	if err != nil {
		respondError(c, "uploadFile", err)
		return
	}
	respondOK(c, http.StatusCreated, uploaded)
}

// GetFile handles GET /api/v1/files/*key - redirects to a freshly signed URL
func GetFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	signed, err := services.GetUploadService().SignedURL(c.Request.Context(), middleware.GetActor(c), key)
	if err != nil {
		respondError(c, "getFile", err)
		return
	}
	c.Redirect(http.StatusFound, signed)
}

// GetUploadedFile handles GET /uploads/:filename - serves files stored by
// the local fallback store
func GetUploadedFile(c *gin.Context) {
	filename := c.Param("filename")

	// Security: Prevent directory traversal attacks
	filePath, err := services.GetLocalBlobStore().Path(filename)
	if err != nil {
		respondError(c, "getUploadedFile", err)
		return
	}

	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		respondError(c, "getUploadedFile", apperror.NotFound("FILE_NOT_FOUND", "File not found"))
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(filePath)
}
