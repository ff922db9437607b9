package relay

import (
	"bytes"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/drone-relay/internal/config"
	"github.com/your-org/drone-relay/internal/state"
)

type recorderLaunch struct {
	mu    sync.Mutex
	procs []*fakeProcess
	next  *fakeProcess
	err   error
}

func (l *recorderLaunch) launch(path string, args ...string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := l.next
	if p == nil {
		p = newFakeProcess()
	}
	l.next = nil
	l.procs = append(l.procs, p)
	return p, nil
}

func newTestRecorder(t *testing.T, lr *recorderLaunch, streaming bool) (*Recorder, *state.Store) {
	t.Helper()
	store := state.NewStore()
	if streaming {
		store.SetStreamStatus(state.StatusActive)
	}
	rec := NewRecorder(RecorderOptions{
		Recording:  config.RecordingConfig{StopTimeout: 100 * time.Millisecond},
		FFmpegPath: "ffmpeg",
		Dir:        t.TempDir(),
		Store:      store,
		LaunchFn:   lr.launch,
	})
	return rec, store
}

func TestRecorderRequiresActiveStream(t *testing.T) {
	lr := &recorderLaunch{}
	rec, _ := newTestRecorder(t, lr, false)

	_, err := rec.Start()
	assert.ErrorIs(t, err, ErrStreamNotActive)
	assert.Empty(t, lr.procs, "no subprocess may be created")
	assert.False(t, rec.Active())
}

func TestRecorderRejectsDoubleStart(t *testing.T) {
	lr := &recorderLaunch{}
	rec, _ := newTestRecorder(t, lr, true)

	name, err := rec.Start()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^recording_.*\.mp4$`), name)

	_, err = rec.Start()
	assert.ErrorIs(t, err, ErrAlreadyRecording)
	assert.Len(t, lr.procs, 1)
}

func TestRecorderStopWithoutSession(t *testing.T) {
	lr := &recorderLaunch{}
	rec, _ := newTestRecorder(t, lr, true)

	_, err := rec.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderGracefulStop(t *testing.T) {
	lr := &recorderLaunch{}
	rec, store := newTestRecorder(t, lr, true)

	started, err := rec.Start()
	require.NoError(t, err)

	st, file := store.Recording()
	assert.Equal(t, state.StatusActive, st)
	assert.Equal(t, started, file)

	frame := bytes.Repeat([]byte{0x47}, 188)
	for i := 0; i < 10; i++ {
		rec.Write(frame)
	}

	stopped, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, started, stopped, "file name is stable across the session")

	p := lr.procs[0]
	assert.True(t, p.stdinIsClosed(), "stop must signal end-of-input")
	assert.False(t, p.wasKilled(), "graceful path must not force-terminate")
	assert.Equal(t, bytes.Repeat(frame, 10), p.stdinBytes())

	st, _ = store.Recording()
	assert.Equal(t, state.StatusIdle, st)
	assert.False(t, rec.Active())

	// Second stop after teardown reports NotRecording, no double teardown.
	_, err = rec.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderStopTimeoutForcesKill(t *testing.T) {
	lr := &recorderLaunch{next: newFakeProcess()}
	lr.next.ignoreEOF = true
	rec, _ := newTestRecorder(t, lr, true)

	_, err := rec.Start()
	require.NoError(t, err)

	_, err = rec.Stop()
	require.NoError(t, err)
	assert.True(t, lr.procs[0].wasKilled(), "hung remux must be force-terminated")
	assert.False(t, rec.Active())
}

func TestRecorderStopUnblocksHungRemux(t *testing.T) {
	proc := newFakeProcess()
	proc.ignoreEOF = true
	proc.stdinBlock = make(chan struct{})
	lr := &recorderLaunch{next: proc}
	rec, _ := newTestRecorder(t, lr, true)

	_, err := rec.Start()
	require.NoError(t, err)

	// A remux that stopped reading stdin leaves the tee parked mid-write.
	writeDone := make(chan struct{})
	go func() {
		rec.Write(bytes.Repeat([]byte{0x47}, 188))
		close(writeDone)
	}()
	time.Sleep(20 * time.Millisecond)

	stopDone := make(chan error, 1)
	go func() {
		_, err := rec.Stop()
		stopDone <- err
	}()

	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop must not wait behind a parked frame write")
	}
	assert.True(t, proc.wasKilled(), "hung remux must be force-terminated")

	select {
	case <-writeDone:
	case <-time.After(time.Second):
		t.Fatal("closing stdin must release the parked write")
	}
	assert.False(t, rec.Active())
}

func TestRecorderWriteSelfHealsOnBrokenPipe(t *testing.T) {
	proc := newFakeProcess()
	proc.stdinErr = errors.New("broken pipe")
	lr := &recorderLaunch{next: proc}
	rec, store := newTestRecorder(t, lr, true)

	_, err := rec.Start()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		rec.Write([]byte("frame"))
	})

	// The sink tore itself down without touching anything else.
	assert.False(t, rec.Active())
	st, _ := store.Recording()
	assert.Equal(t, state.StatusIdle, st)

	_, err = rec.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderWriteWhenIdleIsNoop(t *testing.T) {
	lr := &recorderLaunch{}
	rec, _ := newTestRecorder(t, lr, true)

	assert.NotPanics(t, func() {
		rec.Write([]byte("frame"))
	})
}

func TestRecorderSelfHealsOnSubprocessDeath(t *testing.T) {
	lr := &recorderLaunch{}
	rec, store := newTestRecorder(t, lr, true)

	_, err := rec.Start()
	require.NoError(t, err)

	lr.procs[0].finish(errors.New("exit status 1"))

	require.Eventually(t, func() bool { return !rec.Active() }, time.Second, 5*time.Millisecond)
	st, _ := store.Recording()
	assert.Equal(t, state.StatusIdle, st)
}
