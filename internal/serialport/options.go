// Package serialport opens the serial link to the sensor receiver.
//
// Two drivers exist: "termios" configures the tty directly through
// golang.org/x/sys/unix (Linux only) and "bugst" goes through go.bug.st/serial,
// which also works on macOS and Windows. Ports returned by Open yield (0, nil)
// from Read when the read timeout expires with no data.
package serialport

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DriverTermios = "termios"
	DriverBugst   = "bugst"
)

// Port is an opened serial link.
type Port interface {
	io.ReadCloser
}

// Options describes the serial connection. Zero values take the defaults of
// the receiver firmware: 115200 8N1 with a 100ms read timeout.
type Options struct {
	Device      string
	Baud        int
	DataBits    int
	Parity      string
	StopBits    int
	ReadTimeout time.Duration
	Driver      string
}

// Normalize validates the options and applies defaults for any unset values.
func (o Options) Normalize() (Options, error) {
	opts := o

	opts.Device = strings.TrimSpace(opts.Device)
	if opts.Device == "" {
		return opts, fmt.Errorf("serial device is required")
	}

	if opts.Baud <= 0 {
		opts.Baud = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}

	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	switch driver {
	case "":
		driver = defaultDriver
	case DriverTermios, DriverBugst:
	default:
		return opts, fmt.Errorf("unsupported serial driver %q: expected %q or %q", opts.Driver, DriverTermios, DriverBugst)
	}
	opts.Driver = driver

	return opts, nil
}

func (o Options) String() string {
	return fmt.Sprintf("device=%s baud=%d mode=%d%s%d timeout=%s driver=%s",
		o.Device, o.Baud, o.DataBits, o.Parity, o.StopBits, o.ReadTimeout, o.Driver)
}

// Open normalizes opts and opens the port with the selected driver.
func Open(o Options) (Port, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	switch opts.Driver {
	case DriverBugst:
		return openBugst(opts)
	default:
		return openTermios(opts)
	}
}
