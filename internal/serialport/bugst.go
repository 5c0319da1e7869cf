package serialport

import (
	"fmt"

	bugst "go.bug.st/serial"
)

// bugstMode converts normalized options into the go.bug.st/serial mode.
func bugstMode(o Options) (*bugst.Mode, error) {
	mode := &bugst.Mode{
		BaudRate: o.Baud,
		DataBits: o.DataBits,
	}

	switch o.Parity {
	case "N":
		mode.Parity = bugst.NoParity
	case "E":
		mode.Parity = bugst.EvenParity
	case "O":
		mode.Parity = bugst.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", o.Parity)
	}

	switch o.StopBits {
	case 1:
		mode.StopBits = bugst.OneStopBit
	case 2:
		mode.StopBits = bugst.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", o.StopBits)
	}

	return mode, nil
}

func openBugst(o Options) (Port, error) {
	mode, err := bugstMode(o)
	if err != nil {
		return nil, err
	}
	p, err := bugst.Open(o.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Device, err)
	}
	if err := p.SetReadTimeout(o.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", o.Device, err)
	}
	return p, nil
}
