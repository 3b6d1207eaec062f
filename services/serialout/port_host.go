//go:build !tinygo

package serialout

import (
	"io"

	"github.com/tarm/serial"
)

// OpenPort opens a host serial device such as /dev/ttyUSB0 at baud, 8N1.
func OpenPort(name string, baud uint32) (io.WriteCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     int(baud),
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
}
