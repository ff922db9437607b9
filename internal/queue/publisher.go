package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/your-org/drone-relay/internal/state"
)

// Publisher pushes telemetry and lifecycle events to NATS for external
// consumers. It is optional: a nil *Publisher is a valid no-op, used when no
// NATS URL is configured.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(natsURL, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{nc: nc, prefix: subjectPrefix}, nil
}

// PublishState publishes a telemetry snapshot on <prefix>.state.
func (p *Publisher) PublishState(t state.Telemetry) {
	if p == nil {
		return
	}
	p.publish(p.prefix+".state", t)
}

// PublishEvent publishes a lifecycle event (stream started, recording saved)
// on <prefix>.events.<kind>.
func (p *Publisher) PublishEvent(kind string, data any) {
	if p == nil {
		return
	}
	p.publish(p.prefix+".events."+kind, map[string]any{
		"event":     kind,
		"data":      data,
		"timestamp": time.Now(),
	})
}

func (p *Publisher) publish(subject string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal nats payload", "subject", subject, "error", err)
		return
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		slog.Warn("nats publish failed", "subject", subject, "error", err)
	}
}

func (p *Publisher) Ping() error {
	if p == nil {
		return nil
	}
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.nc.Close()
}
