package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/pkg/response"
)

type cacheFlusher interface {
	Flush(ctx context.Context) error
}

// CacheHandler manages the preview and result cache.
type CacheHandler struct {
	cache cacheFlusher
}

// NewCacheHandler constructs the handler.
func NewCacheHandler(cache cacheFlusher) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Flush godoc
// @Summary Drop every cached preview and timetable
// @Tags Ops
// @Success 204
// @Router /cache [delete]
func (h *CacheHandler) Flush(c *gin.Context) {
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
