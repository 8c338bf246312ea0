package rig

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the serial connection the transport owns. Abstracted so
// tests can run against an in-memory implementation.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input buffered by the driver.
	Flush() error
}

// DefaultBaud is the firmware's serial rate.
const DefaultBaud = 115200

// OpenPort opens a native serial port. readTimeout bounds individual
// reads, which the handshake relies on; zero means blocking reads.
func OpenPort(device string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return p, nil
}
