package relay

import "log/slog"

// TSPacketSize is the fixed size of one MPEG transport stream packet.
const TSPacketSize = 188

// Chunker regroups an arbitrarily-sized byte stream into fixed-size chunks
// aligned to whole transport stream packets, so a chunk boundary can never
// split a packet. It is push-driven: it performs no I/O and has no timers.
type Chunker struct {
	chunkSize int
	buf       []byte
	emit      func(chunk []byte)
}

// NewChunker returns a chunker emitting chunks of packets*TSPacketSize bytes.
func NewChunker(packets int, emit func(chunk []byte)) *Chunker {
	if packets <= 0 {
		packets = 21
	}
	return &Chunker{
		chunkSize: packets * TSPacketSize,
		emit:      emit,
	}
}

// ChunkSize returns the fixed emission size in bytes.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Write appends p to the accumulation buffer and emits every complete chunk.
// Bytes short of a full chunk are retained for the next call. A panic from
// the emit callback resets the buffer instead of propagating: losing a
// fraction of a second of video beats wedging the pipeline.
func (c *Chunker) Write(p []byte) (int, error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chunk emit panicked, resetting buffer", "panic", r)
			c.buf = c.buf[:0]
		}
	}()

	c.buf = append(c.buf, p...)

	for len(c.buf) >= c.chunkSize {
		chunk := make([]byte, c.chunkSize)
		copy(chunk, c.buf[:c.chunkSize])
		c.buf = c.buf[:copy(c.buf, c.buf[c.chunkSize:])]
		c.emit(chunk)
	}

	return len(p), nil
}

// Pending returns the bytes currently held back waiting for a full chunk.
func (c *Chunker) Pending() []byte {
	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}
