package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/solenhart/docingest/internal/pkg/errcode"
	"github.com/solenhart/docingest/internal/pkg/response"
	"github.com/solenhart/docingest/internal/service"
)

type SearchHandler struct {
	documents *service.DocumentService
}

func NewSearchHandler(documents *service.DocumentService) *SearchHandler {
	return &SearchHandler{documents: documents}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "query parameter q is required")
		return
	}
	topK := int(parseUintQuery(c, "top_k", 0))
	matches, err := h.documents.Search(c.Request.Context(), query, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"query":   query,
		"results": matches,
		"total":   len(matches),
	})
}
