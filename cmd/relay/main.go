package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/drone-relay/internal/api"
	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/drone"
	"github.com/your-org/drone-relay/internal/media"
	"github.com/your-org/drone-relay/internal/observability"
	"github.com/your-org/drone-relay/internal/queue"
	"github.com/your-org/drone-relay/internal/relay"
	"github.com/your-org/drone-relay/internal/state"
	"github.com/your-org/drone-relay/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting drone relay", "port", cfg.Server.Port, "drone", cfg.Drone.CommandAddr())

	// Writable media storage is the one thing nothing downstream can live
	// without; failure here stops the whole system.
	layout, err := media.EnsureLayout(cfg.Media.RootDir)
	if err != nil {
		slog.Error("prepare media directories", "error", err)
		os.Exit(1)
	}

	catalog, err := media.OpenCatalog(cfg.Media.RootDir)
	if err != nil {
		slog.Error("open media catalog", "error", err)
		os.Exit(1)
	}
	defer catalog.Close()

	// Optional collaborators: NATS event publishing and S3 archival.
	var publisher *queue.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = queue.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "error", err)
		}
	}
	defer publisher.Close()

	var uploader *storage.Uploader
	if cfg.MinIO.Endpoint != "" {
		uploader, err = storage.NewUploader(cfg.MinIO)
		if err != nil {
			slog.Warn("minio unavailable, archival disabled", "error", err)
		} else if err := uploader.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure archive bucket", "error", err)
		}
	}

	store := state.NewStore()
	hub := relay.NewHub()

	recorder := relay.NewRecorder(relay.RecorderOptions{
		Recording:  cfg.Recording,
		FFmpegPath: cfg.Stream.FFmpegPath,
		Dir:        layout.RecordingsDir,
		Store:      store,
	})

	// Pipeline: transcoder stdout -> chunker -> viewers + recording tee.
	chunker := relay.NewChunker(cfg.Stream.ChunkPackets, func(frame []byte) {
		hub.Broadcast(frame)
		recorder.Write(frame)
	})

	supervisor := relay.NewSupervisor(relay.SupervisorOptions{
		Stream:       cfg.Stream,
		VideoPort:    cfg.Drone.VideoPort,
		SnapshotPath: layout.SnapshotFile,
		Store:        store,
		OnData: func(p []byte) {
			_, _ = chunker.Write(p)
		},
		OnGiveUp: func() {
			if recorder.Active() {
				if name, err := recorder.Stop(); err == nil {
					slog.Info("recording stopped with stream", "file", name)
				}
			}
			publisher.PublishEvent("stream_stopped", nil)
		},
	})

	droneRelay := drone.NewRelay(drone.RelayOptions{
		Drone: cfg.Drone,
		Store: store,
		OnStreamOn: func() {
			if err := supervisor.Start(); err != nil {
				slog.Error("start transcoder", "error", err)
			} else {
				publisher.PublishEvent("stream_started", nil)
			}
		},
		OnStreamOff: func() {
			// Recording cannot outlive its source.
			if recorder.Active() {
				if name, err := recorder.Stop(); err == nil {
					slog.Info("recording stopped with stream", "file", name)
				}
			}
			supervisor.Stop()
			publisher.PublishEvent("stream_stopped", nil)
		},
		OnState: func(t state.Telemetry) {
			hub.BroadcastState(t)
			publisher.PublishState(t)
		},
	})

	if err := droneRelay.Start(); err != nil {
		slog.Error("start command relay", "error", err)
		os.Exit(1)
	}

	// Enter SDK mode so the drone accepts everything that follows. The drone
	// may be offline at boot; every later request retries naturally.
	if err := droneRelay.Send("command"); err != nil {
		slog.Warn("initial SDK-mode command failed", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		DroneRelay: droneRelay,
		Recorder:   recorder,
		Hub:        hub,
		Store:      store,
		Layout:     layout,
		Catalog:    catalog,
		Uploader:   uploader,
		Publisher:  publisher,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("relay server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if recorder.Active() {
		if _, err := recorder.Stop(); err != nil {
			slog.Warn("stop recording on shutdown", "error", err)
		}
	}
	supervisor.Stop()
	droneRelay.Close()
	hub.CloseAll()

	slog.Info("relay stopped")
}
