//go:build !linux

package serialport

import "fmt"

const defaultDriver = DriverBugst

func openTermios(o Options) (Port, error) {
	return nil, fmt.Errorf("serial driver %q not supported on this platform", DriverTermios)
}
