package relay

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/observability"
	"github.com/your-org/drone-relay/internal/state"
)

// Recorder tees the live frame stream into a second transcoder that remuxes
// it to a seekable mp4. It is an independent consumer: a recorder failure
// never reaches the broadcast path.
type Recorder struct {
	recording  config.RecordingConfig
	ffmpegPath string
	dir        string
	store      *state.Store
	launchFn   LaunchFunc

	mu       sync.Mutex
	proc     Process
	stdin    io.WriteCloser
	done     chan struct{}
	fileName string
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Recording  config.RecordingConfig
	FFmpegPath string
	// Dir is the recordings directory; files are timestamp-named and never
	// overwritten.
	Dir      string
	Store    *state.Store
	LaunchFn LaunchFunc
}

func NewRecorder(opts RecorderOptions) *Recorder {
	launchFn := opts.LaunchFn
	if launchFn == nil {
		launchFn = Launch
	}
	return &Recorder{
		recording:  opts.Recording,
		ffmpegPath: opts.FFmpegPath,
		dir:        opts.Dir,
		store:      opts.Store,
		launchFn:   launchFn,
	}
}

// Start launches the recording subprocess and returns the generated file name.
// Fails with ErrStreamNotActive when no stream session is running and with
// ErrAlreadyRecording when a session already exists.
func (r *Recorder) Start() (string, error) {
	if !r.store.StreamActive() {
		return "", ErrStreamNotActive
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil {
		return "", ErrAlreadyRecording
	}

	fileName := fmt.Sprintf("recording_%s.mp4", time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(r.dir, fileName)

	p, err := r.launchFn(r.ffmpegPath, r.buildArgs(path)...)
	if err != nil {
		return "", fmt.Errorf("launch recorder: %w", err)
	}

	done := make(chan struct{})
	r.proc = p
	r.stdin = p.Stdin()
	r.done = done
	r.fileName = fileName

	r.store.SetRecording(state.StatusActive, fileName)
	observability.RecordingActive.Set(1)
	slog.Info("recording started", "file", fileName)

	go drainStderr(p.Stderr())
	go func() {
		err := p.Wait()
		close(done)
		r.handleExit(p, err)
	}()

	return fileName, nil
}

func (r *Recorder) buildArgs(path string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "mpegts",
		"-i", "pipe:0",
	}
	if r.recording.Reencode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "23")
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, "-movflags", "+faststart", "-y", path)
	return args
}

// Write tees one frame into the recording subprocess. When no session is
// active it does nothing. A failed write (broken pipe after the subprocess
// died) self-heals by tearing the session down; it never propagates.
//
// The pipe write happens outside the lock: a remux that stops reading stdin
// would otherwise hold r.mu through a full pipe buffer and lock Stop out of
// its own timeout path.
func (r *Recorder) Write(frame []byte) {
	r.mu.Lock()
	p, stdin := r.proc, r.stdin
	r.mu.Unlock()

	if p == nil {
		return
	}
	_, err := stdin.Write(frame)
	if err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc != p {
		// Stop or handleExit already tore this session down; the write failed
		// against a closed pipe, which is expected.
		return
	}
	slog.Warn("recording write failed, closing session", "error", err)
	r.store.SetLastError(fmt.Sprintf("recording write: %v", err))
	_ = r.stdin.Close()
	r.clearLocked()
}

// Stop signals end-of-input and waits for the subprocess to flush trailing
// container metadata, up to a bounded timeout, then force-terminates it. The
// session is cleared either way. Fails with ErrNotRecording when idle.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if r.proc == nil {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	p := r.proc
	stdin := r.stdin
	done := r.done
	fileName := r.fileName
	r.clearLocked()
	r.mu.Unlock()

	_ = stdin.Close()

	select {
	case <-done:
		slog.Info("recording finished", "file", fileName)
	case <-time.After(r.recording.StopTimeout):
		slog.Warn("recording stop timed out, killing", "file", fileName)
		_ = p.Kill()
		<-done
	}

	return fileName, nil
}

// Active reports whether a recording session exists.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc != nil
}

// clearLocked resets the session. Caller holds r.mu.
func (r *Recorder) clearLocked() {
	r.proc = nil
	r.stdin = nil
	r.done = nil
	r.fileName = ""
	r.store.SetRecording(state.StatusIdle, "")
	observability.RecordingActive.Set(0)
}

// handleExit cleans up after an unexpected subprocess death. A normal Stop
// clears the session first, so this only fires for crashes.
func (r *Recorder) handleExit(p Process, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != p {
		return
	}
	slog.Warn("recording subprocess died", "file", r.fileName, "error", err)
	if err != nil {
		r.store.SetLastError(fmt.Sprintf("recorder exited: %v", err))
	}
	_ = r.stdin.Close()
	r.clearLocked()
}

func drainStderr(rc io.ReadCloser) {
	defer rc.Close()
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		slog.Warn("recorder stderr", "output", scanner.Text())
	}
}
