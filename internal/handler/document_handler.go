package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/solenhart/docingest/internal/extract"
	"github.com/solenhart/docingest/internal/model"
	"github.com/solenhart/docingest/internal/pkg/errcode"
	"github.com/solenhart/docingest/internal/pkg/response"
	"github.com/solenhart/docingest/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

type uploadView struct {
	Document    *model.Document `json:"document"`
	IsDuplicate bool            `json:"is_duplicate"`
	DuplicateOf string          `json:"duplicate_of,omitempty"`
	Message     string          `json:"message,omitempty"`
}

func buildUploadView(res *service.UploadResult) uploadView {
	view := uploadView{Document: res.Document}
	if res.Duplicate != nil {
		view.IsDuplicate = true
		view.DuplicateOf = res.Duplicate.DocumentID
		view.Message = "content matches an existing document"
	}
	return view
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.ErrorStatus(c, http.StatusRequestEntityTooLarge, errcode.ErrFileTooLarge,
			fmt.Sprintf("file exceeds the %s upload limit", formatUploadLimit(h.maxUploadBytes)))
		return
	}
	if !extract.IsSupported(file.Filename) {
		response.ErrorStatus(c, http.StatusUnsupportedMediaType, errcode.ErrUnsupportedFormat,
			fmt.Sprintf("unsupported file format, supported: %s", strings.Join(extract.Supported(), ", ")))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	res, err := h.documents.Upload(c.Request.Context(), file.Filename, file.Size, opened, service.UploadOptions{
		Category:    c.PostForm("category"),
		AutoProcess: parseBoolForm(c, "auto_process", true),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, buildUploadView(res))
}

func (h *DocumentHandler) List(c *gin.Context) {
	status := c.Query("status")
	limit := parseUintQuery(c, "limit", 50)
	offset := parseUintQuery(c, "offset", 0)
	page, err := h.documents.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	docID := c.Param("id")
	chunks, err := h.documents.Chunks(c.Request.Context(), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"document_id": docID,
		"chunks":      chunks,
		"total":       len(chunks),
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *DocumentHandler) Reprocess(c *gin.Context) {
	docID := c.Param("id")
	force := c.Query("force") == "true" || parseBoolForm(c, "force", false)
	if err := h.documents.Reprocess(c.Request.Context(), docID, force); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"document_id": docID,
		"status":      model.DocStatusProcessing,
	})
}

func (h *DocumentHandler) Formats(c *gin.Context) {
	response.Success(c, gin.H{"formats": h.documents.Formats()})
}
