package relay

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// fakeProcess stands in for an ffmpeg subprocess in tests.
type fakeProcess struct {
	mu          sync.Mutex
	stdinBuf    bytes.Buffer
	stdinClosed bool
	stdinErr    error
	stdinBlock  chan struct{} // when set, writes park here until stdin closes
	ignoreEOF   bool          // don't exit when stdin closes
	killed      bool

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	exitOnce sync.Once
	exit     chan error
}

func newFakeProcess() *fakeProcess {
	p := &fakeProcess{exit: make(chan error, 1)}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) finish(err error) {
	p.exitOnce.Do(func() {
		p.exit <- err
	})
}

func (p *fakeProcess) Stdin() io.WriteCloser { return fakeStdin{p} }
func (p *fakeProcess) Stdout() io.ReadCloser { return p.stdoutR }
func (p *fakeProcess) Stderr() io.ReadCloser { return p.stderrR }

func (p *fakeProcess) Terminate() error {
	p.finish(nil)
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("killed"))
	return nil
}

func (p *fakeProcess) Wait() error {
	err := <-p.exit
	p.stdoutW.Close()
	p.stderrW.Close()
	return err
}

func (p *fakeProcess) stdinBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.stdinBuf.Bytes()...)
}

func (p *fakeProcess) stdinIsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdinClosed
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type fakeStdin struct{ p *fakeProcess }

func (s fakeStdin) Write(b []byte) (int, error) {
	s.p.mu.Lock()
	err := s.p.stdinErr
	block := s.p.stdinBlock
	s.p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if block != nil {
		<-block
		return 0, errors.New("write on closed pipe")
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.stdinBuf.Write(b)
}

func (s fakeStdin) Close() error {
	s.p.mu.Lock()
	alreadyClosed := s.p.stdinClosed
	s.p.stdinClosed = true
	ignore := s.p.ignoreEOF
	block := s.p.stdinBlock
	s.p.mu.Unlock()
	if block != nil && !alreadyClosed {
		close(block)
	}
	if !ignore {
		s.p.finish(nil)
	}
	return nil
}

// fakeConn stands in for a viewer websocket connection.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	types    []int
	failWith error
	closed   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	c.types = append(c.types, messageType)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.messages))
	copy(out, c.messages)
	return out
}
