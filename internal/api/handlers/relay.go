package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/drone-relay/internal/drone"
	"github.com/your-org/drone-relay/internal/media"
	"github.com/your-org/drone-relay/internal/queue"
	"github.com/your-org/drone-relay/internal/relay"
	"github.com/your-org/drone-relay/internal/state"
	"github.com/your-org/drone-relay/internal/storage"
	"github.com/your-org/drone-relay/pkg/dto"
)

// RelayHandler serves the drone control surface: commands, recording,
// photo capture and state.
type RelayHandler struct {
	droneRelay *drone.Relay
	recorder   *relay.Recorder
	store      *state.Store
	layout     media.Layout
	catalog    *media.Catalog
	uploader   *storage.Uploader
	publisher  *queue.Publisher
}

func NewRelayHandler(
	droneRelay *drone.Relay,
	recorder *relay.Recorder,
	store *state.Store,
	layout media.Layout,
	catalog *media.Catalog,
	uploader *storage.Uploader,
	publisher *queue.Publisher,
) *RelayHandler {
	return &RelayHandler{
		droneRelay: droneRelay,
		recorder:   recorder,
		store:      store,
		layout:     layout,
		catalog:    catalog,
		uploader:   uploader,
		publisher:  publisher,
	}
}

// Command relays an arbitrary drone command token over UDP.
func (h *RelayHandler) Command(c *gin.Context) {
	cmd := c.Param("cmd")
	if err := h.droneRelay.Send(cmd); err != nil {
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.CommandResponse{Command: cmd, Status: "sent"})
}

// StartRecording launches a recording session for the active stream.
func (h *RelayHandler) StartRecording(c *gin.Context) {
	fileName, err := h.recorder.Start()
	switch {
	case errors.Is(err, relay.ErrStreamNotActive):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "stream not active"})
		return
	case errors.Is(err, relay.ErrAlreadyRecording):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "recording already in progress"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	h.publisher.PublishEvent("recording_started", gin.H{"file_name": fileName})
	c.JSON(http.StatusOK, dto.RecordingResponse{FileName: fileName})
}

// StopRecording drains and finalizes the active recording session, indexes
// the file and archives it when an uploader is configured.
func (h *RelayHandler) StopRecording(c *gin.Context) {
	fileName, err := h.recorder.Stop()
	if errors.Is(err, relay.ErrNotRecording) {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "no active recording"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	path := h.layout.RecordingPath(fileName)
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if _, err := h.catalog.AddRecording(c.Request.Context(), fileName, size); err != nil {
		slog.Error("catalog recording", "file", fileName, "error", err)
	}

	h.archive("recordings/"+fileName, path, "video/mp4")
	h.publisher.PublishEvent("recording_saved", gin.H{"file_name": fileName, "size_bytes": size})

	c.JSON(http.StatusOK, dto.RecordingResponse{FileName: fileName})
}

// CapturePhoto copies the transcoder's current frame to a timestamped file.
func (h *RelayHandler) CapturePhoto(c *gin.Context) {
	if !h.store.StreamActive() {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "stream not active"})
		return
	}

	fileName, ts, err := h.layout.CapturePhoto()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	path := filepath.Join(h.layout.SnapshotsDir, fileName)
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if _, err := h.catalog.AddPhoto(c.Request.Context(), fileName, size); err != nil {
		slog.Error("catalog photo", "file", fileName, "error", err)
	}

	h.archive("snapshots/"+fileName, path, "image/jpeg")

	c.JSON(http.StatusOK, dto.PhotoResponse{FileName: fileName, Timestamp: ts})
}

// State returns the full connection-state snapshot.
func (h *RelayHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// archive uploads a media file in the background; archival is best-effort
// and must not delay the response.
func (h *RelayHandler) archive(key, path, contentType string) {
	if h.uploader == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := h.uploader.UploadFile(ctx, key, path, contentType); err != nil {
			slog.Warn("archive upload failed", "key", key, "error", err)
		}
	}()
}
