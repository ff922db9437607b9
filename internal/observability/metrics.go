package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drelay",
		Name:      "frames_broadcast_total",
		Help:      "Total number of video frames broadcast to viewers",
	})

	BytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drelay",
		Name:      "bytes_relayed_total",
		Help:      "Total video bytes read from the transcoder",
	})

	TranscoderRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drelay",
		Name:      "transcoder_restarts_total",
		Help:      "Total number of automatic transcoder restarts",
	})

	ViewersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "drelay",
		Name:      "viewers_connected",
		Help:      "Number of currently connected stream viewers",
	})

	RecordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "drelay",
		Name:      "recording_active",
		Help:      "Whether a recording session is currently active (0 or 1)",
	})

	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drelay",
		Name:      "commands_sent_total",
		Help:      "Total drone commands sent over UDP",
	}, []string{"command"})

	TelemetryUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drelay",
		Name:      "telemetry_updates_total",
		Help:      "Total classified telemetry updates",
	}, []string{"field"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drelay",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
