package serialport

import (
	"strings"
	"testing"
	"time"

	bugst "go.bug.st/serial"
)

func TestNormalize_Defaults(t *testing.T) {
	got, err := Options{Device: " /dev/ttyUSB0 "}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Device != "/dev/ttyUSB0" {
		t.Fatalf("device=%q want /dev/ttyUSB0", got.Device)
	}
	if got.Baud != 115200 {
		t.Fatalf("baud=%d want 115200", got.Baud)
	}
	if got.DataBits != 8 || got.Parity != "N" || got.StopBits != 1 {
		t.Fatalf("mode=%d%s%d want 8N1", got.DataBits, got.Parity, got.StopBits)
	}
	if got.ReadTimeout != 100*time.Millisecond {
		t.Fatalf("read timeout=%s want 100ms", got.ReadTimeout)
	}
	if got.Driver != defaultDriver {
		t.Fatalf("driver=%q want %q", got.Driver, defaultDriver)
	}
}

func TestNormalize_ParityAliases(t *testing.T) {
	cases := map[string]string{
		"":     "N",
		"none": "N",
		"e":    "E",
		"Even": "E",
		"o":    "O",
		"ODD":  "O",
	}
	for in, want := range cases {
		got, err := Options{Device: "/dev/ttyACM0", Parity: in}.Normalize()
		if err != nil {
			t.Fatalf("parity %q: Normalize() error: %v", in, err)
		}
		if got.Parity != want {
			t.Fatalf("parity %q: got %q want %q", in, got.Parity, want)
		}
	}
}

func TestNormalize_Errors(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want string
	}{
		{name: "no device", opts: Options{}, want: "serial device is required"},
		{name: "data bits", opts: Options{Device: "x", DataBits: 9}, want: "invalid data bits 9"},
		{name: "stop bits", opts: Options{Device: "x", StopBits: 3}, want: "invalid stop bits 3"},
		{name: "parity", opts: Options{Device: "x", Parity: "M"}, want: "unsupported parity"},
		{name: "driver", opts: Options{Device: "x", Driver: "ftdi"}, want: "unsupported serial driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.opts.Normalize()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error=%q want substring %q", err.Error(), tc.want)
			}
		})
	}
}

func TestOpen_RejectsInvalidOptions(t *testing.T) {
	if _, err := Open(Options{Device: "/dev/null", Driver: "nope"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestBugstMode(t *testing.T) {
	opts, err := Options{Device: "COM3", Baud: 57600, DataBits: 7, Parity: "E", StopBits: 2}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	mode, err := bugstMode(opts)
	if err != nil {
		t.Fatalf("bugstMode() error: %v", err)
	}
	if mode.BaudRate != 57600 || mode.DataBits != 7 {
		t.Fatalf("mode=%+v", mode)
	}
	if mode.Parity != bugst.EvenParity {
		t.Fatalf("parity=%v want EvenParity", mode.Parity)
	}
	if mode.StopBits != bugst.TwoStopBits {
		t.Fatalf("stop bits=%v want TwoStopBits", mode.StopBits)
	}
}

func TestString(t *testing.T) {
	opts := Options{Device: "/dev/ttyUSB0", Baud: 115200, DataBits: 8, Parity: "N", StopBits: 1, ReadTimeout: 100 * time.Millisecond, Driver: "bugst"}
	want := "device=/dev/ttyUSB0 baud=115200 mode=8N1 timeout=100ms driver=bugst"
	if got := opts.String(); got != want {
		t.Fatalf("String()=%q want %q", got, want)
	}
}
