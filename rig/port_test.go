package rig

import (
	"io"
	"strings"
	"sync"
	"time"
)

// fakePort is an in-memory Port. Reads block on a channel the test
// feeds with push; writes are recorded and inspectable as lines.
// With idle set, a quiet read returns (0, io.EOF) after that
// duration, the way tarm/serial reports a read timeout.
type fakePort struct {
	mx       sync.Mutex
	wrote    []byte
	writeErr error
	flushes  int

	idle      time.Duration
	readCh    chan []byte
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{readCh: make(chan []byte, 64)}
}

func newTimeoutFakePort() *fakePort {
	p := newFakePort()
	p.idle = 20 * time.Millisecond
	return p
}

// push queues one device line for the reader.
func (p *fakePort) push(line string) {
	p.readCh <- []byte(line + "\n")
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.idle > 0 {
		select {
		case data, ok := <-p.readCh:
			if !ok {
				return 0, io.EOF
			}
			return copy(b, data), nil
		case <-time.After(p.idle):
			return 0, io.EOF
		}
	}
	data, ok := <-p.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(b, data), nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.wrote = append(p.wrote, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.readCh) })
	return nil
}

func (p *fakePort) Flush() error {
	p.mx.Lock()
	p.flushes++
	p.mx.Unlock()
	return nil
}

func (p *fakePort) flushCount() int {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.flushes
}

func (p *fakePort) failWrites(err error) {
	p.mx.Lock()
	p.writeErr = err
	p.mx.Unlock()
}

// lines splits everything written so far on newlines, dropping a
// trailing empty entry.
func (p *fakePort) lines() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	s := strings.TrimSuffix(string(p.wrote), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (p *fakePort) raw() string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return string(p.wrote)
}
