package drone

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/observability"
	"github.com/your-org/drone-relay/internal/state"
)

// RelayOptions configures a Relay.
type RelayOptions struct {
	Drone config.DroneConfig
	Store *state.Store
	// OnStreamOn fires when the drone acknowledges streamon.
	OnStreamOn func()
	// OnStreamOff fires when the drone acknowledges streamoff.
	OnStreamOff func()
	// OnState fires after every classified telemetry update.
	OnState func(t state.Telemetry)
}

// Relay sends text commands to the drone over UDP and classifies the
// responses coming back on the same socket. Acknowledged commands with side
// effects (command, streamon, streamoff) drive the polling loop and the
// stream supervisor through callbacks.
type Relay struct {
	drone       config.DroneConfig
	store       *state.Store
	onStreamOn  func()
	onStreamOff func()
	onState     func(state.Telemetry)

	conn *net.UDPConn
	ack  chan struct{}

	mu         sync.Mutex
	lastRead   string
	pollCancel context.CancelFunc
	closed     bool
}

// pollCommands are the read-commands issued every polling cycle, strictly
// serialized so the drone's unlabeled numeric responses stay attributable.
var pollCommands = []string{"battery?", "speed?", "time?"}

func NewRelay(opts RelayOptions) *Relay {
	noop := func() {}
	if opts.OnStreamOn == nil {
		opts.OnStreamOn = noop
	}
	if opts.OnStreamOff == nil {
		opts.OnStreamOff = noop
	}
	if opts.OnState == nil {
		opts.OnState = func(state.Telemetry) {}
	}
	return &Relay{
		drone:       opts.Drone,
		store:       opts.Store,
		onStreamOn:  opts.OnStreamOn,
		onStreamOff: opts.OnStreamOff,
		onState:     opts.OnState,
		ack:         make(chan struct{}, 1),
	}
}

// Start opens the UDP socket to the drone and begins reading responses.
func (r *Relay) Start() error {
	addr, err := net.ResolveUDPAddr("udp", r.drone.CommandAddr())
	if err != nil {
		return fmt.Errorf("resolve drone address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial drone: %w", err)
	}
	r.conn = conn

	go r.listen()

	slog.Info("command relay started", "drone", addr.String())
	return nil
}

// Send transmits one command as a single UDP datagram and records it as the
// last command issued. Responses arrive asynchronously on the same socket.
func (r *Relay) Send(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("empty command")
	}

	r.store.SetLastCommand(command)
	if strings.HasSuffix(command, "?") {
		r.mu.Lock()
		r.lastRead = command
		r.mu.Unlock()
	}

	if _, err := r.conn.Write([]byte(command)); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	observability.CommandsSent.WithLabelValues(command).Inc()
	slog.Debug("command sent", "command", command)
	return nil
}

// Close stops polling and closes the socket. Idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.pollCancel != nil {
		r.pollCancel()
		r.pollCancel = nil
	}
	r.mu.Unlock()

	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *Relay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Relay) lastReadCommand() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRead
}

// listen reads drone responses until the socket closes. Each message is
// handled inside a containment boundary: a classification bug must never
// take down the whole relay.
func (r *Relay) listen() {
	buf := make([]byte, 1024)
	for {
		n, err := r.conn.Read(buf)
		if err != nil {
			if r.isClosed() {
				return
			}
			slog.Warn("drone socket read failed", "error", err)
			return
		}
		r.handle(strings.TrimSpace(string(buf[:n])))
	}
}

func (r *Relay) handle(msg string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("response handler panicked", "panic", rec, "message", msg)
		}
	}()

	switch {
	case msg == "ok":
		r.handleAck()
	case strings.HasPrefix(strings.ToLower(msg), "error"):
		slog.Warn("drone rejected command", "command", r.store.LastCommand(), "response", msg)
		r.store.SetLastError(msg)
	default:
		r.handleTelemetry(msg)
	}
}

// handleAck applies the side effects of an acknowledged command. Entering SDK
// mode starts the telemetry polling loop, which doubles as the keep-alive
// that stops the drone from auto-landing.
func (r *Relay) handleAck() {
	last := r.store.LastCommand()
	slog.Debug("command acknowledged", "command", last)

	switch last {
	case "command":
		r.startPolling()
	case "streamon":
		r.onStreamOn()
	case "streamoff":
		r.onStreamOff()
	}
}

func (r *Relay) handleTelemetry(msg string) {
	field, ok := r.classify(msg)
	if !ok {
		slog.Debug("unclassified drone response", "response", msg)
		return
	}

	observability.TelemetryUpdates.WithLabelValues(field).Inc()
	r.onState(r.store.Telemetry())

	// Release the poll loop waiting on this response.
	select {
	case r.ack <- struct{}{}:
	default:
	}
}

func (r *Relay) startPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pollCancel != nil || r.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.pollCancel = cancel
	go r.pollLoop(ctx)

	slog.Info("telemetry polling started", "interval", r.drone.PollInterval)
}

func (r *Relay) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.drone.PollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// pollOnce issues the read-commands one at a time, waiting for each response
// (or a timeout) before the next. Strict serialization is what keeps the
// positionally-correlated responses attributable.
func (r *Relay) pollOnce(ctx context.Context) {
	for _, cmd := range pollCommands {
		select {
		case <-r.ack:
		default:
		}

		if err := r.Send(cmd); err != nil {
			slog.Warn("telemetry poll send failed", "command", cmd, "error", err)
			return
		}

		select {
		case <-r.ack:
		case <-time.After(r.drone.PollTimeout):
			slog.Debug("telemetry poll timed out", "command", cmd)
		case <-ctx.Done():
			return
		}
	}
}
