package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/drone-relay/internal/media"
	"github.com/your-org/drone-relay/pkg/dto"
)

// MediaHandler lists cataloged recordings and photos.
type MediaHandler struct {
	catalog *media.Catalog
}

func NewMediaHandler(catalog *media.Catalog) *MediaHandler {
	return &MediaHandler{catalog: catalog}
}

func (h *MediaHandler) ListRecordings(c *gin.Context) {
	h.list(c, h.catalog.ListRecordings)
}

func (h *MediaHandler) ListPhotos(c *gin.Context) {
	h.list(c, h.catalog.ListPhotos)
}

func (h *MediaHandler) list(c *gin.Context, fetch func(context.Context) ([]media.MediaEntry, error)) {
	entries, err := fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	items := make([]dto.MediaItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.MediaItem{
			ID:        e.ID.String(),
			FileName:  e.FileName,
			SizeBytes: e.SizeBytes,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, dto.MediaListResponse{Items: items, Total: len(items)})
}
