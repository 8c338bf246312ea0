package rig

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRankPorts(t *testing.T) {
	ports := []string{
		"/dev/ttyS0",
		"/dev/ttyUSB0",
		"/dev/ttyACM0",
	}
	assert.Equal(t, []string{
		"/dev/ttyACM0",
		"/dev/ttyUSB0",
		"/dev/ttyS0",
	}, rankPorts(ports, nil))
}

func TestRankPorts_HintsWin(t *testing.T) {
	ports := []string{
		"/dev/ttyACM0",
		"/dev/ttyUSB3",
	}
	assert.Equal(t, []string{
		"/dev/ttyUSB3",
		"/dev/ttyACM0",
	}, rankPorts(ports, []string{"ttyusb3"}))
}

func TestRankPorts_StableWithinClass(t *testing.T) {
	ports := []string{"/dev/ttyACM0", "/dev/ttyACM1"}
	assert.Equal(t, ports, rankPorts(ports, nil))
}

// respondToPing plays the device side: once the greeting shows up in
// the written stream, push the reply lines.
func respondToPing(port *fakePort, replies ...string) {
	go func() {
		for !strings.Contains(port.raw(), greeting+"\n") {
			time.Sleep(5 * time.Millisecond)
		}
		for _, r := range replies {
			port.push(r)
		}
	}()
}

func TestHandshake_Accepts(t *testing.T) {
	port := newTimeoutFakePort()
	port.push("READY")
	respondToPing(port, "PONG")

	assert.True(t, handshake(port))
	assert.Contains(t, port.raw(), "PING\n")
}

func TestHandshake_AcceptsWithoutBanner(t *testing.T) {
	port := newTimeoutFakePort()
	port.push("some boot noise")
	respondToPing(port, "PONG extra detail")

	assert.True(t, handshake(port))
}

func TestHandshake_FlushesDriverInput(t *testing.T) {
	port := newTimeoutFakePort()
	port.push("READY")
	respondToPing(port, "PONG")

	assert.True(t, handshake(port))
	assert.Equal(t, 1, port.flushCount())
}

func TestHandshake_RejectsWrongReply(t *testing.T) {
	port := newTimeoutFakePort()
	respondToPing(port, "HELLO", "NOPE")

	assert.False(t, handshake(port))
}
