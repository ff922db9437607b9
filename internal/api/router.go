package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/drone-relay/internal/api/handlers"
	"github.com/your-org/drone-relay/internal/auth"
	"github.com/your-org/drone-relay/internal/drone"
	"github.com/your-org/drone-relay/internal/media"
	"github.com/your-org/drone-relay/internal/queue"
	"github.com/your-org/drone-relay/internal/relay"
	"github.com/your-org/drone-relay/internal/state"
	"github.com/your-org/drone-relay/internal/storage"
)

type RouterConfig struct {
	APIKey     string
	DroneRelay *drone.Relay
	Recorder   *relay.Recorder
	Hub        *relay.Hub
	Store      *state.Store
	Layout     media.Layout
	Catalog    *media.Catalog
	Uploader   *storage.Uploader
	Publisher  *queue.Publisher
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Catalog, cfg.Publisher, cfg.Uploader)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Media files served directly from disk
	r.Static("/media/recordings", cfg.Layout.RecordingsDir)
	r.Static("/media/snapshots", cfg.Layout.SnapshotsDir)

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// Viewer WebSocket
	v1.GET("/ws", HandleWS(cfg.Hub))

	relayH := handlers.NewRelayHandler(
		cfg.DroneRelay, cfg.Recorder, cfg.Store,
		cfg.Layout, cfg.Catalog, cfg.Uploader, cfg.Publisher,
	)
	v1.POST("/command/:cmd", relayH.Command)
	v1.POST("/recording/start", relayH.StartRecording)
	v1.POST("/recording/stop", relayH.StopRecording)
	v1.POST("/photo", relayH.CapturePhoto)
	v1.GET("/state", relayH.State)

	mediaH := handlers.NewMediaHandler(cfg.Catalog)
	v1.GET("/recordings", mediaH.ListRecordings)
	v1.GET("/photos", mediaH.ListPhotos)

	return r
}
