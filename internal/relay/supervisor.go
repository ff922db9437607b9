package relay

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/observability"
	"github.com/your-org/drone-relay/internal/state"
)

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Stream       config.StreamConfig
	VideoPort    int
	SnapshotPath string
	Store        *state.Store
	// OnData receives raw transcoder output as it arrives.
	OnData func(p []byte)
	// OnGiveUp fires when the restart cap is exhausted and the stream shuts
	// down without an explicit Stop. Dependent consumers (the recording tee)
	// are torn down through it.
	OnGiveUp func()
	// LaunchFn defaults to Launch. Tests inject fakes.
	LaunchFn LaunchFunc
}

// Supervisor owns at most one transcoder subprocess at a time. It launches
// ffmpeg reading the drone's UDP video feed, exposes its mpegts output through
// OnData, and restarts it after a fixed backoff whenever it dies while the
// stream is still wanted.
type Supervisor struct {
	stream       config.StreamConfig
	videoPort    int
	snapshotPath string
	store        *state.Store
	onData       func([]byte)
	onGiveUp     func()
	launchFn     LaunchFunc

	mu           sync.Mutex
	proc         Process
	procDone     chan struct{}
	desired      bool
	restarts     int
	restartTimer *time.Timer
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	launchFn := opts.LaunchFn
	if launchFn == nil {
		launchFn = Launch
	}
	onData := opts.OnData
	if onData == nil {
		onData = func([]byte) {}
	}
	onGiveUp := opts.OnGiveUp
	if onGiveUp == nil {
		onGiveUp = func() {}
	}
	return &Supervisor{
		stream:       opts.Stream,
		videoPort:    opts.VideoPort,
		snapshotPath: opts.SnapshotPath,
		store:        opts.Store,
		onData:       onData,
		onGiveUp:     onGiveUp,
		launchFn:     launchFn,
	}
}

// Start launches the transcoder. If one is already owned it is terminated
// first and its exit awaited, so two processes never race to bind the video
// port. A synchronous launch failure is returned to the caller; later crashes
// are recovered through the restart path.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	s.desired = true
	s.restarts = 0
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	old, oldDone := s.proc, s.procDone
	s.proc, s.procDone = nil, nil
	s.mu.Unlock()

	if old != nil {
		_ = old.Terminate()
		<-oldDone
	}

	return s.launch()
}

// Stop terminates the owned transcoder, if any, and cancels any pending
// restart. Calling it with nothing running is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.desired = false
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	p := s.proc
	s.mu.Unlock()

	if p != nil {
		_ = p.Terminate()
	}
	s.store.SetStreamStatus(state.StatusIdle)
}

// Running reports whether a transcoder process is currently owned.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}

func (s *Supervisor) launch() error {
	s.store.SetStreamStatus(state.StatusStarting)

	p, err := s.launchFn(s.stream.FFmpegPath, s.buildArgs()...)
	if err != nil {
		s.store.SetLastError(err.Error())
		s.scheduleRestart()
		return fmt.Errorf("launch transcoder: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.proc = p
	s.procDone = done
	s.mu.Unlock()

	s.store.SetStreamStatus(state.StatusActive)
	slog.Info("transcoder started", "video_port", s.videoPort)

	go s.scanStderr(p.Stderr())
	go s.pumpOutput(p.Stdout())
	go func() {
		err := p.Wait()
		close(done)
		s.handleExit(p, err)
	}()

	return nil
}

func (s *Supervisor) buildArgs() []string {
	// overrun_nonfatal keeps ffmpeg alive through UDP jitter; the fifo absorbs
	// bursts from the drone's unthrottled video port.
	input := fmt.Sprintf("udp://0.0.0.0:%d?overrun_nonfatal=1&fifo_size=50000000", s.videoPort)

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-i", input,
		"-f", "mpegts",
		"-codec:v", "mpeg1video",
		"-s", "960x720",
		"-b:v", "800k",
		"-r", "30",
		"-bf", "0",
		"pipe:1",
	}

	if s.snapshotPath != "" {
		args = append(args,
			"-f", "image2",
			"-update", "1",
			"-q:v", "2",
			"-y", s.snapshotPath,
		)
	}

	return args
}

// pumpOutput feeds transcoder stdout into the pipeline until the pipe closes.
func (s *Supervisor) pumpOutput(r io.ReadCloser) {
	defer r.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			observability.BytesRelayed.Add(float64(n))
			s.onData(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// scanStderr logs transcoder diagnostics line by line. Known-benign noise is
// dropped; lines matching failure vocabulary are recorded as the last error
// but do not by themselves trigger a restart.
func (s *Supervisor) scanStderr(r io.ReadCloser) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if isStderrNoise(line) {
			continue
		}
		if isStderrFailure(line) {
			slog.Warn("transcoder stderr", "output", line)
			s.store.SetLastError(line)
			continue
		}
		slog.Debug("transcoder stderr", "output", line)
	}
}

func isStderrNoise(line string) bool {
	for _, m := range []string{
		"Last message repeated",
		"buffer underflow",
		"packet corrupt",
		"deprecated",
	} {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func isStderrFailure(line string) bool {
	l := strings.ToLower(line)
	for _, m := range []string{"error", "failed", "invalid", "unable"} {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

func (s *Supervisor) handleExit(p Process, err error) {
	s.mu.Lock()
	if s.proc != p {
		// Superseded by a newer launch; nothing to clean up.
		s.mu.Unlock()
		return
	}
	s.proc = nil
	s.procDone = nil
	desired := s.desired
	s.mu.Unlock()

	if err != nil {
		slog.Warn("transcoder exited", "error", err)
		s.store.SetLastError(err.Error())
	} else {
		slog.Info("transcoder exited")
	}

	if desired {
		s.store.SetStreamStatus(state.StatusStarting)
		s.scheduleRestart()
	} else {
		s.store.SetStreamStatus(state.StatusIdle)
	}
}

// scheduleRestart arms the backoff timer for a relaunch. A fixed delay is
// enough for a local process; failures here are transient resource contention,
// not a network peer backing off.
func (s *Supervisor) scheduleRestart() {
	s.mu.Lock()

	if !s.desired || s.restartTimer != nil {
		s.mu.Unlock()
		return
	}
	if s.stream.MaxRestarts > 0 && s.restarts >= s.stream.MaxRestarts {
		restarts := s.restarts
		s.desired = false
		s.mu.Unlock()

		slog.Error("transcoder restart limit reached, giving up", "restarts", restarts)
		s.store.SetStreamStatus(state.StatusIdle)
		// A recording cannot outlive its source stream.
		s.onGiveUp()
		return
	}
	s.restarts++
	observability.TranscoderRestarts.Inc()

	delay := s.stream.RestartBackoff
	slog.Info("scheduling transcoder restart", "delay", delay, "attempt", s.restarts)

	s.restartTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.restartTimer = nil
		desired := s.desired
		s.mu.Unlock()
		if !desired {
			return
		}
		if err := s.launch(); err != nil {
			slog.Error("transcoder relaunch failed", "error", err)
		}
	})
	s.mu.Unlock()
}
