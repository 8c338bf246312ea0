package main

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rigctl/rig"
	"rigctl/script"
	"rigctl/sim"
)

// session wires the pipeline together: validate, expand, gate, send.
// The transport is not safe for concurrent callers, so every
// operation runs under one mutex. The response sink fans out on a
// separate lock because it fires from the reader goroutine while a
// send may be in progress.
type session struct {
	mx      sync.Mutex
	t       *rig.Transport
	state   *sim.State
	dialect script.Dialect
	device  string
	baud    int
	hints   []string
	log     zerolog.Logger

	sinkMx sync.Mutex
	sinks  []func(string)

	events chan sessionState
}

type sessionState struct {
	Connected bool    `json:"connected"`
	Port      string  `json:"port"`
	Z         float64 `json:"z"`
	Inflight  int     `json:"inflight"`
	Queued    int     `json:"queued"`
}

func newSession(t *rig.Transport, device string, baud int, hints []string, initialZ float64, d script.Dialect, log zerolog.Logger) *session {
	s := &session{
		t:       t,
		state:   &sim.State{Z: initialZ},
		dialect: d,
		device:  device,
		baud:    baud,
		hints:   hints,
		log:     log,
		events:  make(chan sessionState, 8),
	}
	t.SetSink(s.fanout)
	return s
}

// AddSink registers a console listener, called one line at a time
// from the reader goroutine.
func (s *session) AddSink(fn func(string)) {
	s.sinkMx.Lock()
	s.sinks = append(s.sinks, fn)
	s.sinkMx.Unlock()
}

func (s *session) fanout(line string) {
	s.sinkMx.Lock()
	sinks := append(([]func(string))(nil), s.sinks...)
	s.sinkMx.Unlock()
	for _, fn := range sinks {
		fn(line)
	}
}

// Events yields session snapshots for the SSE pump.
func (s *session) Events() <-chan sessionState { return s.events }

func (s *session) snapshot() sessionState {
	return sessionState{
		Connected: s.t.Connected(),
		Port:      s.t.PortName(),
		Z:         s.state.Z,
		Inflight:  s.t.Inflight(),
		Queued:    s.t.Queued(),
	}
}

// Snapshot is the lock-taking variant for request handlers.
func (s *session) Snapshot() sessionState {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.snapshot()
}

func (s *session) notify() {
	select {
	case s.events <- s.snapshot():
	default:
	}
}

type checkResult struct {
	OK       bool          `json:"ok"`
	Errors   script.Errors `json:"errors,omitempty"`
	Limit    string        `json:"limit,omitempty"`
	Commands int           `json:"commands"`
	EndZ     float64       `json:"end_z"`
}

// Check runs validation and the soft-limit gate without sending or
// mutating the persistent position.
func (s *session) Check(text string) checkResult {
	s.mx.Lock()
	defer s.mx.Unlock()

	sc, errs := script.Parse(text, s.dialect)
	if len(errs) > 0 {
		return checkResult{Errors: errs, EndZ: s.state.Z}
	}
	p := sc.Expand()
	end, err := sim.Check(p, s.state.Z)
	if err != nil {
		return checkResult{Limit: err.Error(), Commands: len(p), EndZ: s.state.Z}
	}
	return checkResult{OK: true, Commands: len(p), EndZ: end}
}

// Send runs the full pipeline. Validation errors come back as
// script.Errors, a gate rejection as *sim.LimitError; in both cases
// nothing is transmitted and the position is unchanged.
func (s *session) Send(text string) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	sc, errs := script.Parse(text, s.dialect)
	if len(errs) > 0 {
		return 0, errs
	}
	p := sc.Expand()
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.state.Apply(p); err != nil {
		return 0, err
	}
	n, err := s.t.Send(p)
	s.notify()
	return n, err
}

func (s *session) Connect() (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	port, err := s.t.Connect(s.device, s.baud, s.hints)
	s.notify()
	return port, err
}

func (s *session) Disconnect() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	err := s.t.Disconnect()
	s.notify()
	return err
}

// Stop asserts the emergency stop. It intentionally skips the session
// lock: it must land even while Send holds it.
func (s *session) Stop() error {
	return s.t.EmergencyStop()
}

// Status asks the firmware for its run state. Like Stop it skips the
// session lock, so the query answers while a send is in flight.
func (s *session) Status() (string, error) {
	return s.t.Status()
}

// ReportZ asks the firmware for its own z position; the reply shows
// up on the console sink.
func (s *session) ReportZ() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	_, err := s.t.SendLines([]string{"report z"})
	return err
}

// WaitIdle blocks until the device queue drains or timeout elapses.
func (s *session) WaitIdle(timeout time.Duration) bool {
	return s.t.WaitIdle(timeout)
}

// Shutdown stops motion best-effort and closes the session.
func (s *session) Shutdown() {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !s.t.Connected() {
		return
	}
	// Teardown stop is opportunistic; its failure is irrelevant
	// once the port closes.
	_ = s.t.EmergencyStop()
	if err := s.t.Disconnect(); err != nil && !errors.Is(err, rig.ErrNotConnected) {
		s.log.Warn().Err(err).Msg("disconnect during shutdown")
	}
}
