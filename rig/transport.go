// Package rig owns the serial connection to the stepper controller:
// discovery and handshake, windowed command streaming, the background
// response reader, and the queue-bypassing emergency stop.
package rig

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rigctl/script"
)

var (
	// ErrNotConnected is returned by operations requiring an open
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNoDevice is returned when discovery exhausts every
	// candidate port.
	ErrNoDevice = errors.New("no device found")
)

// Transport is the single owner of one serial session. Send, Connect,
// and Disconnect expect a single caller; EmergencyStop may interleave
// with an in-progress Send, and the background reader is internal.
type Transport struct {
	log zerolog.Logger

	mx       sync.Mutex
	conn     *Conn
	portName string
	sink     func(string)
}

// NewTransport returns a disconnected transport.
func NewTransport(log zerolog.Logger) *Transport {
	return &Transport{log: log}
}

// current returns the open Conn, or nil.
func (t *Transport) current() *Conn {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.conn
}

// SetSink registers the response sink before or after connecting.
// The sink is called from the reader goroutine.
func (t *Transport) SetSink(fn func(string)) {
	t.mx.Lock()
	t.sink = fn
	conn := t.conn
	t.mx.Unlock()
	if conn != nil {
		conn.SetSink(fn)
	}
}

// Connected reports whether a session is open.
func (t *Transport) Connected() bool { return t.current() != nil }

// PortName is the device of the open session, or "".
func (t *Transport) PortName() string {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.portName
}

// Inflight is the current window occupancy, 0 when disconnected.
func (t *Transport) Inflight() int {
	conn := t.current()
	if conn == nil {
		return 0
	}
	return conn.Inflight()
}

// Queued is the device-side queue depth by its own accounting lines,
// 0 when disconnected.
func (t *Transport) Queued() int {
	conn := t.current()
	if conn == nil {
		return 0
	}
	return conn.Queued()
}

// Connect opens the session. With device == "" it discovers the
// controller by ranked port scan; otherwise it opens the named device
// and still requires the handshake. Returns the connected port name.
func (t *Transport) Connect(device string, baud int, hints []string) (string, error) {
	if conn := t.current(); conn != nil {
		return t.PortName(), nil
	}
	if baud == 0 {
		baud = DefaultBaud
	}

	var port Port
	var name string
	if device == "" {
		var err error
		port, name, err = Discover(baud, hints)
		if err != nil {
			return "", err
		}
	} else {
		var err error
		port, err = OpenPort(device, baud, handshakeTimeout)
		if err != nil {
			return "", err
		}
		if !handshake(port) {
			port.Close()
			return "", fmt.Errorf("handshake failed on %s", device)
		}
		name = device
	}

	t.attach(port, name)
	t.log.Info().Str("port", name).Int("baud", baud).Msg("connected")
	return name, nil
}

// Attach adopts an already-open port as the session, skipping
// discovery and handshake. For callers that run their own port
// selection.
func (t *Transport) Attach(port Port, name string) {
	if conn := t.current(); conn != nil {
		return
	}
	t.attach(port, name)
}

func (t *Transport) attach(port Port, name string) {
	conn := NewConn(port)
	t.mx.Lock()
	conn.SetSink(t.sink)
	t.conn = conn
	t.portName = name
	t.mx.Unlock()
}

// Send streams the flattened program one line at a time under the
// window discipline. It returns the number of commands transmitted;
// on failure, commands already sent stay in flight.
func (t *Transport) Send(p script.Program) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	n := 0
	for _, c := range p {
		if err := conn.WriteLine(c.String()); err != nil {
			return n, fmt.Errorf("send command %d of %d: %w", n+1, len(p), err)
		}
		n++
	}
	t.log.Debug().Int("commands", n).Msg("program sent")
	return n, nil
}

// SendLines streams raw text lines, skipping blanks and comments.
// The transport performs no validation beyond that.
func (t *Transport) SendLines(lines []string) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	n := 0
	for _, raw := range lines {
		s := strings.TrimSpace(raw)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if err := conn.WriteLine(s); err != nil {
			return n, fmt.Errorf("send line %d: %w", n+1, err)
		}
		n++
	}
	return n, nil
}

// EmergencyStop writes the reserved stop byte directly, bypassing the
// window. Safe to call while a send is in progress.
func (t *Transport) EmergencyStop() error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}
	t.log.Warn().Msg("emergency stop")
	return conn.WriteByte(stopByte)
}

// Status queries the firmware run state, falling back to "connected"
// for firmware that predates the STATUS command.
func (t *Transport) Status() (string, error) {
	conn := t.current()
	if conn == nil {
		return "", ErrNotConnected
	}
	reply := conn.expect("STATUS", 600*time.Millisecond)
	if err := conn.WriteControl("STATUS"); err != nil {
		return "", err
	}
	line, ok := <-reply
	if !ok {
		return "connected", nil
	}
	parts := strings.Fields(line)
	if len(parts) >= 2 {
		switch st := strings.ToUpper(parts[1]); st {
		case "RUNNING", "READY", "IDLE":
			return strings.ToLower(st), nil
		}
	}
	return "connected", nil
}

// WaitIdle blocks until the device queue drains or timeout elapses.
func (t *Transport) WaitIdle(timeout time.Duration) bool {
	conn := t.current()
	if conn == nil {
		return true
	}
	return conn.WaitIdle(timeout)
}

// Disconnect stops the reader and closes the port. The session
// returns to the disconnected state regardless of close errors.
func (t *Transport) Disconnect() error {
	t.mx.Lock()
	conn := t.conn
	t.conn = nil
	t.portName = ""
	t.mx.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	t.log.Info().Msg("disconnected")
	return err
}
