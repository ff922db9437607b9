package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/drone-relay/internal/media"
	"github.com/your-org/drone-relay/internal/queue"
	"github.com/your-org/drone-relay/internal/storage"
)

type SystemHandler struct {
	catalog   *media.Catalog
	publisher *queue.Publisher
	uploader  *storage.Uploader
}

func NewSystemHandler(catalog *media.Catalog, publisher *queue.Publisher, uploader *storage.Uploader) *SystemHandler {
	return &SystemHandler{catalog: catalog, publisher: publisher, uploader: uploader}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.catalog.Ping(ctx); err != nil {
		checks["catalog"] = err.Error()
		healthy = false
	} else {
		checks["catalog"] = "ok"
	}

	if h.publisher != nil {
		if err := h.publisher.Ping(); err != nil {
			checks["nats"] = err.Error()
			healthy = false
		} else {
			checks["nats"] = "ok"
		}
	}

	if h.uploader != nil {
		if err := h.uploader.Ping(ctx); err != nil {
			checks["minio"] = err.Error()
			healthy = false
		} else {
			checks["minio"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
