package rig

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	greeting   = "PING"
	greetReply = "PONG"
	bootBanner = "READY"

	handshakeTimeout  = 200 * time.Millisecond
	handshakeAttempts = 10
	bootDrain         = 600 * time.Millisecond
)

// ListPorts enumerates candidate serial device names for the current
// platform.
func ListPorts() []string {
	var patterns []string
	switch runtime.GOOS {
	case "darwin":
		patterns = []string{"/dev/cu.*"}
	case "windows":
		ports := make([]string, 0, 16)
		for i := 1; i <= 16; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	default:
		patterns = []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/ttyS*"}
	}
	var out []string
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		out = append(out, matches...)
	}
	return out
}

// rankPorts orders candidates by how likely they are to host the
// controller: names matching a vendor hint first, Arduino-class
// devices next, generic USB-serial after, everything else last.
func rankPorts(ports, hints []string) []string {
	ranked := append([]string(nil), ports...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return portScore(ranked[i], hints) < portScore(ranked[j], hints)
	})
	return ranked
}

func portScore(name string, hints []string) int {
	base := strings.ToLower(filepath.Base(name))
	for _, h := range hints {
		if h != "" && strings.Contains(base, strings.ToLower(h)) {
			return 0
		}
	}
	switch {
	case strings.HasPrefix(base, "ttyacm"), strings.HasPrefix(base, "cu.usbmodem"):
		return 1
	case strings.HasPrefix(base, "ttyusb"),
		strings.HasPrefix(base, "cu.usbserial"),
		strings.HasPrefix(base, "cu.wchusbserial"),
		strings.HasPrefix(base, "com"):
		return 2
	}
	return 3
}

// handshake confirms the opened port hosts the controller: flush
// stale driver input, drain any boot noise (a stray READY banner is a
// good sign but not required), send the greeting, and accept only if
// the reply arrives within a bounded number of short reads.
func handshake(p Port) bool {
	// Input buffered before this session is stale.
	if err := p.Flush(); err != nil {
		return false
	}
	drainBoot(p)
	if _, err := p.Write([]byte(greeting + "\n")); err != nil {
		return false
	}
	buf := make([]byte, 256)
	var acc []byte
	for i := 0; i < handshakeAttempts; i++ {
		n, err := p.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			if hasLinePrefix(acc, greetReply) {
				return true
			}
		}
		if err != nil && n == 0 {
			time.Sleep(handshakeTimeout / 4)
		}
	}
	return false
}

func drainBoot(p Port) {
	buf := make([]byte, 256)
	deadline := time.Now().Add(bootDrain)
	for time.Now().Before(deadline) {
		n, err := p.Read(buf)
		if n > 0 && hasLinePrefix(buf[:n], bootBanner) {
			return
		}
		if err != nil || n == 0 {
			time.Sleep(handshakeTimeout / 4)
		}
	}
}

func hasLinePrefix(data []byte, prefix string) bool {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), prefix) {
			return true
		}
	}
	return false
}

// Discover tries each candidate port in ranked order and returns the
// first one that completes the handshake.
func Discover(baud int, hints []string) (Port, string, error) {
	for _, name := range rankPorts(ListPorts(), hints) {
		p, err := OpenPort(name, baud, handshakeTimeout)
		if err != nil {
			continue
		}
		if handshake(p) {
			return p, name, nil
		}
		p.Close()
	}
	return nil, "", ErrNoDevice
}
