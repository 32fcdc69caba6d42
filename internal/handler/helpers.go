package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/ai"
	"github.com/solenhart/docingest/internal/pkg/errcode"
	appErr "github.com/solenhart/docingest/internal/pkg/errors"
	"github.com/solenhart/docingest/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.ErrorStatus(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many files")
	case errors.Is(err, appErr.ErrConflict):
		response.ErrorStatus(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		response.ErrorStatus(c, http.StatusUnsupportedMediaType, errcode.ErrUnsupportedFormat, err.Error())
	case errors.Is(err, appErr.ErrEmptyContent):
		response.Error(c, errcode.ErrEmptyContent, err.Error())
	case errors.Is(err, appErr.ErrFileTooLarge):
		response.ErrorStatus(c, http.StatusRequestEntityTooLarge, errcode.ErrFileTooLarge, err.Error())
	case errors.Is(err, appErr.ErrAlreadyProcessing):
		response.ErrorStatus(c, http.StatusConflict, errcode.ErrAlreadyProcessing, "document is already being processed")
	case errors.Is(err, ai.ErrUnavailable):
		response.ErrorStatus(c, http.StatusServiceUnavailable, errcode.ErrSearchUnavailable, "semantic search is not configured")
	default:
		response.ErrorStatus(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func parseUintQuery(c *gin.Context, name string, fallback uint) uint {
	value := c.Query(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return uint(parsed)
}

func parseBoolForm(c *gin.Context, name string, fallback bool) bool {
	value := c.PostForm(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
