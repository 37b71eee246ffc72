// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package events connects the input task, the data-ready interrupt and the
// acquisition task through coalesced binary signals.
package events

import (
	"context"
	"fmt"
)

// Signal is a binary event flag. Raising an already pending signal is a
// no-op, so any number of raises before a Wait collapse into one occurrence.
type Signal struct {
	name string
	ch   chan struct{}
}

func newSignal(name string) *Signal {
	return &Signal{name: name, ch: make(chan struct{}, 1)}
}

// Name returns the signal's name.
func (s *Signal) Name() string { return s.name }

// Raise marks the signal pending. It never blocks and never allocates, so it
// is safe to call from an edge-detection goroutine.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Clear drops a pending occurrence and reports whether one was pending.
func (s *Signal) Clear() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Pending reports whether the signal is currently raised.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}

// Wait blocks until the signal is raised, then consumes it.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request is the kind of session the user asked for.
type Request int

const (
	RequestEnroll Request = iota + 1
	RequestAuthenticate
)

func (r Request) String() string {
	switch r {
	case RequestEnroll:
		return "enroll"
	case RequestAuthenticate:
		return "authenticate"
	}
	return fmt.Sprintf("request(%d)", int(r))
}

// ParseRequest maps "enroll"/"record" and "authenticate"/"unlock" to a Request.
func ParseRequest(s string) (Request, error) {
	switch s {
	case "enroll", "record":
		return RequestEnroll, nil
	case "authenticate", "unlock":
		return RequestAuthenticate, nil
	}
	return 0, fmt.Errorf("unknown request %q", s)
}

// Orchestrator holds the three signals shared by the tasks.
type Orchestrator struct {
	EnrollRequested       *Signal
	AuthenticateRequested *Signal
	SensorDataReady       *Signal
}

// New returns an Orchestrator with nothing pending.
func New() *Orchestrator {
	return &Orchestrator{
		EnrollRequested:       newSignal("EnrollRequested"),
		AuthenticateRequested: newSignal("AuthenticateRequested"),
		SensorDataReady:       newSignal("SensorDataReady"),
	}
}

// Raise raises the request signal matching r.
func (o *Orchestrator) Raise(r Request) {
	switch r {
	case RequestEnroll:
		o.EnrollRequested.Raise()
	case RequestAuthenticate:
		o.AuthenticateRequested.Raise()
	}
}

// WaitRequest blocks until either request signal is raised and consumes it.
// When both are pending both are consumed and enrollment wins.
func (o *Orchestrator) WaitRequest(ctx context.Context) (Request, error) {
	select {
	case <-o.EnrollRequested.ch:
		o.AuthenticateRequested.Clear()
		return RequestEnroll, nil
	case <-o.AuthenticateRequested.ch:
		if o.EnrollRequested.Clear() {
			return RequestEnroll, nil
		}
		return RequestAuthenticate, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ClearRequests drops request signals raised while a session was running.
func (o *Orchestrator) ClearRequests() {
	o.EnrollRequested.Clear()
	o.AuthenticateRequested.Clear()
}

// DataReady is the interrupt entry point: it raises SensorDataReady.
func (o *Orchestrator) DataReady() {
	o.SensorDataReady.Raise()
}

// WaitDataReady blocks until SensorDataReady is raised and consumes it.
func (o *Orchestrator) WaitDataReady(ctx context.Context) error {
	return o.SensorDataReady.Wait(ctx)
}
