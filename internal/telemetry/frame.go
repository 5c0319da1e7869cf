package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Availabler is implemented by transports that can report how many bytes are
// ready without blocking.
type Availabler interface {
	Available() (int, error)
}

type FrameConfig struct {
	// IdleWait is how long to back off when the transport has nothing pending.
	IdleWait time.Duration

	// MaxLineBytes bounds a single record. Longer lines are discarded.
	MaxLineBytes int

	// ReadChunkBytes is the size of each transport read.
	ReadChunkBytes int
}

// FrameReader turns a byte stream into newline-delimited records.
//
// It owns its reassembly buffer; callers must not share the transport with
// another reader.
type FrameReader struct {
	r   io.Reader
	cfg FrameConfig

	buf   []byte
	chunk []byte

	// discarding is set while skipping the remainder of an oversized line.
	discarding  bool
	discardHead string

	// err is the transport fault to report once buffered records are drained.
	err error

	bytesRead atomic.Uint64
	records   atomic.Uint64
}

func NewFrameReader(r io.Reader, cfg FrameConfig) *FrameReader {
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 5 * time.Millisecond
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4096
	}
	if cfg.ReadChunkBytes <= 0 {
		cfg.ReadChunkBytes = 512
	}
	return &FrameReader{
		r:     r,
		cfg:   cfg,
		buf:   make([]byte, 0, cfg.ReadChunkBytes),
		chunk: make([]byte, cfg.ReadChunkBytes),
	}
}

// Next blocks until a complete record is available and returns it without
// its line terminator. The returned slice is a fresh copy.
//
// A *TransportError is returned when the transport fails (io.EOF included).
// A *MalformedRecordError is returned for an oversized line; the reader stays
// usable afterwards.
func (f *FrameReader) Next(ctx context.Context) ([]byte, error) {
	if f == nil || f.r == nil {
		return nil, &TransportError{Op: "read", Err: fmt.Errorf("frame reader has no transport")}
	}
	for {
		if rec, ok, err := f.takeLine(); ok {
			return rec, err
		}
		if f.err != nil {
			return nil, f.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if a, ok := f.r.(Availabler); ok {
			n, err := a.Available()
			if err != nil {
				f.err = &TransportError{Op: "available", Err: err}
				continue
			}
			if n == 0 {
				if !sleepCtx(ctx, f.cfg.IdleWait) {
					return nil, ctx.Err()
				}
				continue
			}
		}

		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.bytesRead.Add(uint64(n))
			f.buf = append(f.buf, f.chunk[:n]...)
		}
		if err != nil {
			// Frame whatever arrived with the error before reporting it.
			f.err = &TransportError{Op: "read", Err: err}
			continue
		}
		if n == 0 {
			// Read timeout expired with no data.
			if !sleepCtx(ctx, f.cfg.IdleWait) {
				return nil, ctx.Err()
			}
		}
	}
}

// BytesRead is the total number of bytes pulled from the transport.
func (f *FrameReader) BytesRead() uint64 { return f.bytesRead.Load() }

// Records is the number of records handed out by Next.
func (f *FrameReader) Records() uint64 { return f.records.Load() }

// takeLine extracts the next record from the buffer. ok is false when no
// complete line is buffered.
func (f *FrameReader) takeLine() (rec []byte, ok bool, err error) {
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			if len(f.buf) > f.cfg.MaxLineBytes {
				if !f.discarding {
					f.discarding = true
					f.discardHead = snippet(f.buf)
				}
				f.buf = f.buf[:0]
			}
			return nil, false, nil
		}

		line := bytes.TrimRight(f.buf[:i], "\r")
		if f.discarding || len(line) > f.cfg.MaxLineBytes {
			head := f.discardHead
			if !f.discarding {
				head = snippet(line)
			}
			f.discarding = false
			f.discardHead = ""
			f.consume(i + 1)
			return nil, true, &MalformedRecordError{
				Reason: ReasonOversize,
				Record: head,
				Err:    fmt.Errorf("line exceeds %d bytes", f.cfg.MaxLineBytes),
			}
		}
		if len(bytes.TrimSpace(line)) == 0 {
			f.consume(i + 1)
			continue
		}

		rec = append([]byte(nil), line...)
		f.consume(i + 1)
		f.records.Add(1)
		return rec, true, nil
	}
}

func (f *FrameReader) consume(n int) {
	rest := copy(f.buf, f.buf[n:])
	f.buf = f.buf[:rest]
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
