package pipeline

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"attview/internal/orientation"
	"attview/internal/telemetry"
)

// Pose is what presenters receive once per decoded sample.
//
// Angles are the decoded values (roll and yaw already negated) in the unit the
// solver consumed them in.
type Pose struct {
	Seq uint64 `json:"seq"`

	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	Forward    [3]float64 `json:"forward"`
	Up         [3]float64 `json:"up"`
	Side       [3]float64 `json:"side"`
	Degenerate bool       `json:"degenerate,omitempty"`

	BatteryPercent float64 `json:"battery_percent"`
	RSSI           float64 `json:"rssi"`

	ReceivedUTC string `json:"received_utc,omitempty"`
}

// NewPose combines a sample and its solved basis.
func NewPose(seq uint64, s telemetry.Sample, b orientation.Basis) Pose {
	p := Pose{
		Seq:            seq,
		Roll:           s.Roll,
		Pitch:          s.Pitch,
		Yaw:            s.Yaw,
		Forward:        orientation.Array(b.Forward),
		Up:             orientation.Array(b.Up),
		Side:           orientation.Array(b.Side),
		Degenerate:     b.Degenerate,
		BatteryPercent: s.BatteryPercent,
		RSSI:           s.RSSI,
	}
	if !s.ReceivedAt.IsZero() {
		p.ReceivedUTC = s.ReceivedAt.UTC().Format(time.RFC3339Nano)
	}
	return p
}

// Presenter is a sink for poses. Publish must not block the caller for long;
// its error is logged by the loop and never stops it.
type Presenter interface {
	Publish(p Pose) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(p Pose) error

func (f PresenterFunc) Publish(p Pose) error { return f(p) }

type multi []Presenter

// Multi fans a pose out to every presenter in order. A failing presenter does
// not prevent the others from receiving the pose.
func Multi(presenters ...Presenter) Presenter {
	out := make(multi, 0, len(presenters))
	for _, p := range presenters {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multi) Publish(p Pose) error {
	var errs []error
	for _, s := range m {
		if err := safePublish(s, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safePublish turns a presenter panic into an error.
func safePublish(s Presenter, p Pose) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("presenter panic: %v", r)
		}
	}()
	return s.Publish(p)
}

// Console prints one line per pose, with angles shown in degrees.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Publish(p Pose) error {
	if c == nil || c.w == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w,
		"Roll=%9.2f  Pitch=%9.2f  Yaw=%9.2f  Batt_percent=%6.1f  RSSI=%7.1f\n",
		orientation.Degrees(p.Roll), orientation.Degrees(p.Pitch), orientation.Degrees(p.Yaw),
		p.BatteryPercent, p.RSSI,
	)
	return err
}
