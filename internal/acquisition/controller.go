// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition runs capture sessions: it waits for an enroll or
// authenticate request, calibrates the gyro, records a fixed window of
// samples, trims it and hands the gesture to the store or the matcher.
package acquisition

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/imu"
	"github.com/relabs-tech/gesture_lock/internal/match"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

// Logf is the package logger. Tests may replace it.
var Logf = log.Printf

// rearmPause separates the end of a session from the next wait.
const rearmPause = 100 * time.Millisecond

// State of the controller.
type State int32

const (
	Idle State = iota
	Calibrating
	Recording
	Trimming
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Calibrating:
		return "calibrating"
	case Recording:
		return "recording"
	case Trimming:
		return "trimming"
	case Done:
		return "done"
	}
	return "unknown"
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeSaved           Outcome = "saved"
	OutcomeAlreadyEnrolled Outcome = "already_enrolled"
	OutcomeNoGesture       Outcome = "no_gesture"
	OutcomeNoReference     Outcome = "no_reference"
	OutcomeUnlocked        Outcome = "unlocked"
	OutcomeRejected        Outcome = "rejected"
	OutcomeSensorError     Outcome = "sensor_error"
	OutcomeAborted         Outcome = "aborted"
)

// Sensor is the part of gyro.Driver a session uses.
type Sensor interface {
	Configure(rate gyro.Rate, scale gyro.Scale) (gyro.Profile, error)
	Calibrate() (gyro.Profile, error)
	ReadCalibrated() (imu.Calibrated, error)
}

// Session describes one finished capture.
type Session struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Samples   int            `json:"samples"`
	Outcome   Outcome        `json:"outcome"`
	Match     *match.Result  `json:"match,omitempty"`
	Travel    [3]float64     `json:"travel"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Request   events.Request `json:"-"`
	Err       error          `json:"-"`
}

// Observer is told about every session that was not aborted.
type Observer interface {
	SessionDone(Session)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Session)

func (f ObserverFunc) SessionDone(s Session) { f(s) }

// Config holds the session timings and sensor settings.
type Config struct {
	Rate           gyro.Rate
	Scale          gyro.Scale
	PromptDelay    time.Duration
	RecordWindow   time.Duration
	SampleInterval time.Duration
}

// Mirror copies the reference to a blob store after each enrollment.
type Mirror struct {
	Store   gesture.BlobStore
	Address uint32
}

// Controller is the single consumer of enroll and authenticate requests.
type Controller struct {
	cfg      Config
	sensor   Sensor
	signals  *events.Orchestrator
	store    *gesture.Store
	strategy match.Strategy
	status   *ui.Board
	mirror   *Mirror

	state atomic.Int32

	mu        sync.Mutex
	observers []Observer
}

// New builds a controller. mirror may be nil.
func New(cfg Config, sensor Sensor, signals *events.Orchestrator, store *gesture.Store,
	strategy match.Strategy, status *ui.Board, mirror *Mirror) *Controller {
	return &Controller{
		cfg:      cfg,
		sensor:   sensor,
		signals:  signals,
		store:    store,
		strategy: strategy,
		status:   status,
		mirror:   mirror,
	}
}

// IdleStatus is the status shown when nothing is running.
func IdleStatus(enrolled bool) (string, ui.Lamp) {
	if enrolled {
		return ui.TextLocked, ui.LampLocked
	}
	return ui.TextNoKey, ui.LampUnlocked
}

// Observe registers o for finished sessions.
func (c *Controller) Observe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Run serves requests one at a time until ctx is done. Requests raised
// while a session runs are dropped when it ends.
func (c *Controller) Run(ctx context.Context) error {
	Logf("acquisition: waiting for requests")
	for {
		req, err := c.signals.WaitRequest(ctx)
		if err != nil {
			return nil
		}
		c.RunSession(ctx, req)
		c.signals.ClearRequests()
		if !sleepCtx(ctx, rearmPause) {
			return nil
		}
	}
}

// RunSession performs one full capture for req and returns its summary.
func (c *Controller) RunSession(ctx context.Context, req events.Request) Session {
	sess := Session{
		ID:        uuid.NewString(),
		Kind:      req.String(),
		Request:   req,
		StartedAt: time.Now(),
	}
	defer c.setState(Idle)
	Logf("acquisition: session %s: %s requested", sess.ID, sess.Kind)

	c.status.Show(ui.TextPleaseWait)
	if !sleepCtx(ctx, c.cfg.PromptDelay) {
		return c.abort(sess)
	}

	seq, err := c.capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(sess)
		}
		Logf("acquisition: session %s: %v", sess.ID, err)
		c.status.Show(ui.TextSensorError)
		sess.Outcome = OutcomeSensorError
		sess.Err = err
		return c.finish(sess)
	}

	c.setState(Trimming)
	seq = gesture.Trim(seq)
	sess.Samples = len(seq)
	sess.Travel = gesture.TravelDistance(seq, c.cfg.SampleInterval)
	c.status.Show(ui.TextRecorded)
	c.setState(Done)

	switch req {
	case events.RequestEnroll:
		c.enroll(seq, &sess)
	case events.RequestAuthenticate:
		c.authenticate(seq, &sess)
	}
	return c.finish(sess)
}

// capture configures and calibrates the sensor, then records one window.
func (c *Controller) capture(ctx context.Context) (gesture.Sequence, error) {
	c.setState(Calibrating)
	c.status.Show(ui.TextConfiguring)
	if _, err := c.sensor.Configure(c.cfg.Rate, c.cfg.Scale); err != nil {
		return nil, err
	}
	if _, err := c.sensor.Calibrate(); err != nil {
		return nil, err
	}

	c.setState(Recording)
	c.status.Show(ui.TextRecording)
	window, cancel := context.WithTimeout(ctx, c.cfg.RecordWindow)
	defer cancel()

	var seq gesture.Sequence
	for {
		// one read per wait; edges during the sleep collapse into one
		if err := c.signals.WaitDataReady(window); err != nil {
			break
		}
		s, err := c.sensor.ReadCalibrated()
		if err != nil {
			return nil, err
		}
		seq = append(seq, s)
		if !sleepCtx(window, c.cfg.SampleInterval) {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return seq, nil
}

func (c *Controller) enroll(seq gesture.Sequence, sess *Session) {
	if c.store.Enrolled() {
		c.status.Show(ui.TextKeyExists)
		sess.Outcome = OutcomeAlreadyEnrolled
		return
	}
	c.status.Show(ui.TextSaving)
	err := c.store.Enroll(seq)
	switch {
	case err == nil:
		c.status.Set(ui.TextSaved, ui.LampLocked)
		sess.Outcome = OutcomeSaved
		c.persist(sess.ID)
	case errors.Is(err, gesture.ErrEmptySequence):
		c.status.Show(ui.TextNoGesture)
		sess.Outcome = OutcomeNoGesture
	case errors.Is(err, gesture.ErrAlreadyEnrolled):
		c.status.Show(ui.TextKeyExists)
		sess.Outcome = OutcomeAlreadyEnrolled
	}
	sess.Err = err
}

func (c *Controller) persist(id string) {
	if c.mirror == nil {
		return
	}
	if err := c.store.Persist(c.mirror.Store, c.mirror.Address); err != nil {
		Logf("acquisition: session %s: %v", id, err)
		return
	}
	Logf("acquisition: session %s: reference mirrored at 0x%08X", id, c.mirror.Address)
}

func (c *Controller) authenticate(seq gesture.Sequence, sess *Session) {
	ref, ok := c.store.Reference()
	if !ok {
		c.status.Set(ui.TextNoKeyToMatch, ui.LampLocked)
		sess.Outcome = OutcomeNoReference
		sess.Err = gesture.ErrNoReference
		return
	}
	res := c.strategy.Compare(ref, seq)
	sess.Match = &res
	if res.Accepted {
		c.status.Set(ui.TextUnlockSuccess, ui.LampUnlocked)
		sess.Outcome = OutcomeUnlocked
		return
	}
	c.status.Set(ui.TextUnlockFailed, ui.LampLocked)
	sess.Outcome = OutcomeRejected
}

func (c *Controller) abort(sess Session) Session {
	Logf("acquisition: session %s: aborted", sess.ID)
	c.status.Set(IdleStatus(c.store.Enrolled()))
	sess.Outcome = OutcomeAborted
	sess.Duration = time.Since(sess.StartedAt)
	return sess
}

func (c *Controller) finish(sess Session) Session {
	sess.Duration = time.Since(sess.StartedAt)
	if sess.Match != nil {
		r := sess.Match
		Logf("acquisition: session %s: %s %d samples r=(%.3f, %.3f, %.3f) dist=%.1f -> %s",
			sess.ID, sess.Kind, sess.Samples, r.Axes[0], r.Axes[1], r.Axes[2], r.Distance, sess.Outcome)
	} else {
		Logf("acquisition: session %s: %s %d samples -> %s", sess.ID, sess.Kind, sess.Samples, sess.Outcome)
	}

	c.mu.Lock()
	obs := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range obs {
		o.SessionDone(sess)
	}
	return sess
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
