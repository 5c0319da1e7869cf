//go:build linux

package serialport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const defaultDriver = DriverTermios

// termiosPort reads the tty with VMIN=0/VTIME>0 so a read returns (0, nil)
// once the timeout expires. It bypasses os.File, which would report that as
// io.EOF.
type termiosPort struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

func openTermios(o Options) (Port, error) {
	fd, err := unix.Open(o.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Device, err)
	}

	// If anything below fails, close fd.
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios on %s: %w", o.Device, err)
	}

	spd, err := baudToUnix(o.Baud)
	if err != nil {
		return nil, err
	}
	size, err := dataBitsToUnix(o.DataBits)
	if err != nil {
		return nil, err
	}

	// Raw mode: no line editing, no CR/LF translation. Records keep their \r.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB
	t.Cflag |= size | unix.CREAD | unix.CLOCAL
	switch o.Parity {
	case "E":
		t.Cflag |= unix.PARENB
	case "O":
		t.Cflag |= unix.PARENB | unix.PARODD
	}
	if o.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = vtime(o.ReadTimeout)

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, fmt.Errorf("set termios on %s: %w", o.Device, err)
	}
	// Drop whatever the device sent before we were listening.
	_ = unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)

	ok = true
	return &termiosPort{fd: fd}, nil
}

func (p *termiosPort) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Available reports the number of bytes queued in the tty input buffer.
func (p *termiosPort) Available() (int, error) {
	return unix.IoctlGetInt(p.fd, unix.TIOCINQ)
}

func (p *termiosPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}

// vtime converts a timeout into tenths of a second, clamped to what the
// termios VTIME field can hold.
func vtime(d time.Duration) uint8 {
	ds := (d + 99*time.Millisecond) / (100 * time.Millisecond)
	if ds < 1 {
		return 1
	}
	if ds > 255 {
		return 255
	}
	return uint8(ds)
}

func dataBitsToUnix(bits int) (uint32, error) {
	switch bits {
	case 5:
		return unix.CS5, nil
	case 6:
		return unix.CS6, nil
	case 7:
		return unix.CS7, nil
	case 8:
		return unix.CS8, nil
	default:
		return 0, fmt.Errorf("unsupported data bits %d", bits)
	}
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 921600:
		return unix.B921600, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
