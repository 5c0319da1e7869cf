// Package pipeline runs the read, decode, solve and publish loop.
//
// The loop is single-threaded: each record is fully processed before the next
// one is requested. Only transport faults end it; malformed records and
// presenter failures are logged and skipped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"attview/internal/orientation"
	"attview/internal/telemetry"
)

type AngleUnit string

const (
	// Radians feeds decoded angles to the trig functions unchanged.
	Radians AngleUnit = "radians"
	// Degrees converts decoded angles to radians before solving.
	Degrees AngleUnit = "degrees"
)

type Options struct {
	AngleUnit AngleUnit

	// Logger receives diagnostics. Defaults to log.Default().
	Logger *log.Logger

	// Now stamps samples. Defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the loop counters.
type Stats struct {
	BytesRead       uint64 `json:"bytes_read"`
	Records         uint64 `json:"records"`
	Published       uint64 `json:"published"`
	Malformed       uint64 `json:"malformed"`
	PresenterErrors uint64 `json:"presenter_errors"`
	Degenerate      uint64 `json:"degenerate"`
	LastError       string `json:"last_error,omitempty"`
	LastSampleUTC   string `json:"last_sample_utc,omitempty"`
}

func (s Stats) String() string {
	return fmt.Sprintf("read %s, %d records, %d published, %d malformed, %d presenter errors, %d degenerate",
		humanize.Bytes(s.BytesRead), s.Records, s.Published, s.Malformed, s.PresenterErrors, s.Degenerate)
}

type Pipeline struct {
	src  *telemetry.FrameReader
	sink Presenter
	opts Options

	// inDegenerate tracks the singular configuration so it is reported once
	// per entry rather than once per sample.
	inDegenerate bool

	mu    sync.Mutex
	seq   uint64
	stats Stats
}

func New(src *telemetry.FrameReader, sink Presenter, opts Options) *Pipeline {
	if opts.AngleUnit == "" {
		opts.AngleUnit = Radians
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sink == nil {
		sink = Multi()
	}
	return &Pipeline{src: src, sink: sink, opts: opts}
}

// Run processes records until ctx is cancelled or the transport fails.
// It returns ctx.Err() on cancellation and a wrapped *telemetry.TransportError
// on a transport fault.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil || p.src == nil {
		return fmt.Errorf("pipeline: no frame source")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := p.src.Next(ctx)
		if err != nil {
			var te *telemetry.TransportError
			switch {
			case errors.As(err, &te):
				p.setLastError(err)
				p.opts.Logger.Printf("fatal: telemetry: %v", err)
				return fmt.Errorf("pipeline: %w", err)
			case errors.Is(err, telemetry.ErrMalformed):
				p.dropRecord(err)
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				return fmt.Errorf("pipeline: %w", err)
			}
		}

		pose, err := p.Process(rec)
		if err != nil {
			p.dropRecord(err)
			continue
		}

		if err := safePublish(p.sink, pose); err != nil {
			p.mu.Lock()
			p.stats.PresenterErrors++
			p.stats.LastError = err.Error()
			p.mu.Unlock()
			p.opts.Logger.Printf("warn: presenter: %v", err)
			continue
		}
		p.mu.Lock()
		p.stats.Published++
		p.mu.Unlock()
	}
}

// Process decodes and solves a single record. The only error it returns is a
// *telemetry.MalformedRecordError.
func (p *Pipeline) Process(record []byte) (Pose, error) {
	s, err := telemetry.Decode(record)
	if err != nil {
		return Pose{}, err
	}
	now := p.opts.Now()
	s.ReceivedAt = now

	roll, pitch, yaw := s.Roll, s.Pitch, s.Yaw
	if p.opts.AngleUnit == Degrees {
		roll, pitch, yaw = orientation.Radians(roll), orientation.Radians(pitch), orientation.Radians(yaw)
	}
	b := orientation.Solve(roll, pitch, yaw)

	if b.Degenerate && !p.inDegenerate {
		p.opts.Logger.Printf("warn: orientation: degenerate basis at pitch=%g (forward parallel to world up)", s.Pitch)
	}
	p.inDegenerate = b.Degenerate

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.stats.Records++
	if b.Degenerate {
		p.stats.Degenerate++
	}
	p.stats.LastSampleUTC = now.UTC().Format(time.RFC3339Nano)
	p.mu.Unlock()

	s.Roll, s.Pitch, s.Yaw = roll, pitch, yaw
	return NewPose(seq, s, b), nil
}

// Stats is safe to call from any goroutine.
func (p *Pipeline) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	out := p.stats
	p.mu.Unlock()
	if p.src != nil {
		out.BytesRead = p.src.BytesRead()
	}
	return out
}

func (p *Pipeline) dropRecord(err error) {
	p.mu.Lock()
	p.stats.Malformed++
	p.stats.LastError = err.Error()
	p.mu.Unlock()
	p.opts.Logger.Printf("warn: telemetry: dropped record: %v", err)
}

func (p *Pipeline) setLastError(err error) {
	p.mu.Lock()
	p.stats.LastError = err.Error()
	p.mu.Unlock()
}
