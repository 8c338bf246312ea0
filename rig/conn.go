package rig

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// windowSize matches the firmware's internal command queue depth.
// Commands sent but not yet reported dequeued never exceed it.
const windowSize = 32

const (
	// Accounting line prefixes from the device.
	ackQueued   = "QUEUED"
	ackDequeued = "DEQUEUED"

	// stopByte halts motion immediately, outside the queue.
	stopByte = '!'

	// ackWait bounds how long a full-window sender sleeps before
	// re-checking occupancy, so a lost acknowledgment line degrades
	// to slow progress instead of a permanent stall.
	ackWait = 250 * time.Millisecond

	// closeJoin bounds how long Close waits for the reader to exit.
	closeJoin = time.Second
)

// ErrClosed is returned from writes after Close.
var ErrClosed = errors.New("connection closed")

// Conn owns a serial Port and enforces the sliding-window discipline.
// A background reader classifies incoming lines: accounting lines
// update the window counters and wake blocked senders, and every line
// is forwarded to the sink.
type Conn struct {
	port Port

	mx       sync.Mutex
	sent     int64
	queued   int64
	dequeued int64
	readErr  error
	sink     func(string)
	waiters  []*lineWaiter

	// wMx serializes writes to the port. The stop byte takes it
	// too, so its single byte never splits a command line.
	wMx sync.Mutex

	ackCh     chan struct{}
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn starts the background reader and takes ownership of port.
func NewConn(port Port) *Conn {
	c := &Conn{
		port:    port,
		ackCh:   make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLines()
	return c
}

// SetSink registers the response sink. It is invoked from the reader
// goroutine, one line at a time, accounting lines included.
func (c *Conn) SetSink(fn func(string)) {
	c.mx.Lock()
	c.sink = fn
	c.mx.Unlock()
}

// Inflight is the current window occupancy.
func (c *Conn) Inflight() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return int(c.sent - c.dequeued)
}

// Queued is the number of commands sitting in the device's own queue,
// by its accounting lines: accepted but not yet dequeued.
func (c *Conn) Queued() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return int(c.queued - c.dequeued)
}

// WriteLine sends one command, blocking while the window is full.
func (c *Conn) WriteLine(line string) error {
	if err := c.waitForWindow(); err != nil {
		return err
	}
	c.wMx.Lock()
	_, err := c.port.Write([]byte(line + "\n"))
	c.wMx.Unlock()
	if err != nil {
		return err
	}
	c.mx.Lock()
	c.sent++
	c.mx.Unlock()
	return nil
}

// WriteControl writes one line directly, outside the window
// accounting. For control queries the firmware answers immediately
// rather than queueing.
func (c *Conn) WriteControl(line string) error {
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}
	c.wMx.Lock()
	_, err := c.port.Write([]byte(line + "\n"))
	c.wMx.Unlock()
	return err
}

// WriteByte writes directly to the port without window accounting.
// Used for the emergency stop byte.
func (c *Conn) WriteByte(b byte) error {
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}
	c.wMx.Lock()
	_, err := c.port.Write([]byte{b})
	c.wMx.Unlock()
	return err
}

func (c *Conn) waitForWindow() error {
	for {
		select {
		case <-c.closeCh:
			return ErrClosed
		default:
		}
		c.mx.Lock()
		open := c.sent-c.dequeued < windowSize
		readErr := c.readErr
		c.mx.Unlock()
		if open {
			return nil
		}
		if readErr != nil {
			return readErr
		}
		select {
		case <-c.closeCh:
			return ErrClosed
		case <-c.done:
		case <-c.ackCh:
		case <-time.After(ackWait):
		}
	}
}

// WaitIdle blocks until every sent command has been dequeued or the
// timeout elapses. Reports whether the queue drained.
func (c *Conn) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		c.mx.Lock()
		idle := c.sent == c.dequeued
		c.mx.Unlock()
		if idle {
			return true
		}
		remain := time.Until(deadline)
		if remain <= 0 {
			return false
		}
		if remain > ackWait {
			remain = ackWait
		}
		select {
		case <-c.closeCh:
			return false
		case <-c.done:
			return false
		case <-c.ackCh:
		case <-time.After(remain):
		}
	}
}

// notifyAck wakes one blocked sender. The channel holds one pending
// signal, so an ack arriving with nobody waiting is not lost.
func (c *Conn) notifyAck() {
	select {
	case c.ackCh <- struct{}{}:
	default:
	}
}

// lineWaiter is a one-shot subscription for the next line with a
// given prefix.
type lineWaiter struct {
	prefix string
	ch     chan string
}

// expect registers interest in the next line starting with prefix.
// The channel yields the line, or closes when timeout elapses first.
func (c *Conn) expect(prefix string, timeout time.Duration) <-chan string {
	w := &lineWaiter{prefix: prefix, ch: make(chan string, 1)}
	c.mx.Lock()
	c.waiters = append(c.waiters, w)
	c.mx.Unlock()
	time.AfterFunc(timeout, func() {
		if c.dropWaiter(w) {
			close(w.ch)
		}
	})
	return w.ch
}

func (c *Conn) dropWaiter(w *lineWaiter) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	for i, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// portReader adapts the port for the line scanner. A port opened with
// a read timeout reports a quiet interval as io.EOF with no data;
// that is silence, not end-of-stream, so keep reading until the
// connection closes. The driver's timeout paces the retry.
type portReader struct{ c *Conn }

func (r portReader) Read(p []byte) (int, error) {
	for {
		n, err := r.c.port.Read(p)
		if n > 0 {
			return n, err
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		select {
		case <-r.c.closeCh:
			return 0, io.EOF
		default:
		}
	}
}

func (c *Conn) readLines() {
	defer close(c.done)
	scan := bufio.NewScanner(portReader{c})
	for scan.Scan() {
		line := strings.TrimRight(scan.Text(), "\r")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, ackDequeued):
			c.mx.Lock()
			c.dequeued++
			c.mx.Unlock()
			c.notifyAck()
		case strings.HasPrefix(line, ackQueued):
			c.mx.Lock()
			c.queued++
			c.mx.Unlock()
			c.notifyAck()
		}
		c.mx.Lock()
		sink := c.sink
		var matched []*lineWaiter
		keep := c.waiters[:0]
		for _, w := range c.waiters {
			if strings.HasPrefix(line, w.prefix) {
				matched = append(matched, w)
			} else {
				keep = append(keep, w)
			}
		}
		c.waiters = keep
		c.mx.Unlock()
		for _, w := range matched {
			w.ch <- line
		}
		if sink != nil {
			sink(line)
		}
	}
	err := scan.Err()
	if err == nil {
		err = io.EOF
	}
	c.mx.Lock()
	c.readErr = err
	c.mx.Unlock()
}

// Close stops the reader, wakes any blocked sender, and closes the
// port. The reader join is bounded.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.port.Close()
		select {
		case <-c.done:
		case <-time.After(closeJoin):
		}
	})
	return err
}
