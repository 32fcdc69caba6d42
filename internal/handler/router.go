package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Bulk      *BulkHandler
	Search    *SearchHandler
	RateLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limit := deps.RateLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api.POST("/documents", limit, deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.POST("/documents/bulk", limit, deps.Bulk.Upload)
	api.GET("/documents/bulk/:job_id", deps.Bulk.Progress)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/chunks", deps.Documents.Chunks)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/:id/reprocess", limit, deps.Documents.Reprocess)

	api.GET("/search", deps.Search.Search)
	api.GET("/formats", deps.Documents.Formats)
}
