package web

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"attview/internal/pipeline"
)

type Status struct {
	startUnixNano int64
	session       string
	serial        atomic.Value // SerialInfo
	angleUnit     atomic.Value // string
	sinks         atomic.Value // []string
	stats         atomic.Value // func() pipeline.Stats
	poses         atomic.Pointer[PoseBroadcaster]
}

func NewStatus() *Status {
	s := &Status{session: uuid.NewString()}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.serial.Store(SerialInfo{})
	s.angleUnit.Store("")
	s.sinks.Store([]string{})
	s.stats.Store(func() pipeline.Stats { return pipeline.Stats{} })
	return s
}

// SerialInfo describes the link the pipeline reads from.
type SerialInfo struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
	Mode   string `json:"mode"`
	Driver string `json:"driver"`
}

func (s *Status) SetStatic(serial SerialInfo, angleUnit string, sinks []string) {
	s.serial.Store(serial)
	if angleUnit != "" {
		s.angleUnit.Store(angleUnit)
	}
	if sinks != nil {
		s.sinks.Store(append([]string(nil), sinks...))
	}
}

// SetStatsSource installs the function polled for pipeline counters.
func (s *Status) SetStatsSource(fn func() pipeline.Stats) {
	if fn == nil {
		return
	}
	s.stats.Store(fn)
}

func (s *Status) SetBroadcaster(b *PoseBroadcaster) {
	s.poses.Store(b)
}

func (s *Status) Session() string { return s.session }

type StreamSnapshot struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

type StatusSnapshot struct {
	Service        string         `json:"service"`
	Session        string         `json:"session"`
	NowUTC         string         `json:"now_utc"`
	UptimeSec      int64          `json:"uptime_sec"`
	Serial         SerialInfo     `json:"serial"`
	AngleUnit      string         `json:"angle_unit"`
	Sinks          []string       `json:"sinks"`
	Pipeline       pipeline.Stats `json:"pipeline"`
	BytesReadHuman string         `json:"bytes_read_human"`
	Stream         StreamSnapshot `json:"stream"`
	LastPose       *pipeline.Pose `json:"last_pose,omitempty"`
	LastPoseAge    string         `json:"last_pose_age,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	stats := s.stats.Load().(func() pipeline.Stats)()

	snap := StatusSnapshot{
		Service:        "attview",
		Session:        s.session,
		NowUTC:         nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:      int64(nowUTC.Sub(start).Seconds()),
		Serial:         s.serial.Load().(SerialInfo),
		AngleUnit:      s.angleUnit.Load().(string),
		Sinks:          s.sinks.Load().([]string),
		Pipeline:       stats,
		BytesReadHuman: humanize.Bytes(stats.BytesRead),
	}

	if b := s.poses.Load(); b != nil {
		snap.Stream = StreamSnapshot{
			Subscribers: b.Subscribers(),
			Published:   b.Published(),
			Dropped:     b.Dropped(),
		}
		if p, ok := b.Last(); ok {
			snap.LastPose = &p
			if t, err := time.Parse(time.RFC3339Nano, p.ReceivedUTC); err == nil {
				snap.LastPoseAge = humanize.RelTime(t, nowUTC, "ago", "from now")
			}
		}
	}
	return snap
}
