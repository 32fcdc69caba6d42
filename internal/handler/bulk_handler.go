package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/solenhart/docingest/internal/pkg/errcode"
	"github.com/solenhart/docingest/internal/pkg/response"
	"github.com/solenhart/docingest/internal/service"
)

type BulkHandler struct {
	bulk           *service.BulkService
	uploadDir      string
	maxFiles       int
	maxUploadBytes int64
}

func NewBulkHandler(bulk *service.BulkService, uploadDir string, maxFiles int, maxUploadBytes int64) *BulkHandler {
	return &BulkHandler{bulk: bulk, uploadDir: uploadDir, maxFiles: maxFiles, maxUploadBytes: maxUploadBytes}
}

// Upload stages every part on local disk before answering, because the job
// keeps running after this request ends and multipart temp files do not.
func (h *BulkHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalidFile, "multipart form is required")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalidFile, "at least one file is required")
		return
	}
	if h.maxFiles > 0 && len(files) > h.maxFiles {
		response.Error(c, errcode.ErrTooMany, fmt.Sprintf("at most %d files per batch", h.maxFiles))
		return
	}

	staged := make([]service.BulkFile, 0, len(files))
	for _, file := range files {
		path, err := h.stage(file)
		if err != nil {
			removeStaged(staged)
			response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrUploadFailed,
				fmt.Sprintf("failed to read %s", file.Filename))
			return
		}
		staged = append(staged, service.BulkFile{Name: file.Filename, Path: path})
	}

	progress, err := h.bulk.Start(c.Request.Context(), staged, service.BulkOptions{
		Category:    c.PostForm("category"),
		AutoProcess: parseBoolForm(c, "auto_process", true),
	})
	if err != nil {
		removeStaged(staged)
		handleError(c, err)
		return
	}
	response.Success(c, progress)
}

func (h *BulkHandler) Progress(c *gin.Context) {
	progress, err := h.bulk.Progress(c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, progress)
}

// stage copies one part into the upload directory. Oversized parts are
// truncated just past the limit; the per-file size check downstream turns
// that into a recorded failure instead of aborting the whole batch.
func (h *BulkHandler) stage(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.uploadDir, ".bulk-*")
	if err != nil {
		return "", err
	}
	reader := io.Reader(src)
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(src, h.maxUploadBytes+1)
	}
	_, err = io.Copy(dst, reader)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func removeStaged(staged []service.BulkFile) {
	for _, file := range staged {
		_ = os.Remove(file.Path)
	}
}
