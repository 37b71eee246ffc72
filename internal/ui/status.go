// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ui

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Status line texts.
const (
	TextNoKey         = "NO KEY RECORDED"
	TextLocked        = "LOCKED"
	TextPleaseWait    = "Please wait..."
	TextConfiguring   = "Configuring..."
	TextRecording     = "Recording..."
	TextRecorded      = "Recording complete"
	TextSaving        = "Saving key..."
	TextSaved         = "Key saved..."
	TextKeyExists     = "Key Already Exists!"
	TextNoKeyToMatch  = "No key to match."
	TextUnlockSuccess = "UNLOCK SUCCESS"
	TextUnlockFailed  = "UNLOCK FAILED"
	TextNoGesture     = "No gesture detected"
	TextSensorError   = "Sensor error"
)

// Lamp is the state of the two mutually exclusive indicator lamps.
type Lamp int

const (
	LampOff Lamp = iota
	LampLocked
	LampUnlocked
)

func (l Lamp) String() string {
	switch l {
	case LampLocked:
		return "locked"
	case LampUnlocked:
		return "unlocked"
	default:
		return "off"
	}
}

// MarshalText lets Lamp appear as a word in JSON.
func (l Lamp) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (l *Lamp) UnmarshalText(b []byte) error {
	switch string(b) {
	case "off":
		*l = LampOff
	case "locked":
		*l = LampLocked
	case "unlocked":
		*l = LampUnlocked
	default:
		return fmt.Errorf("unknown lamp %q", b)
	}
	return nil
}

// Status is what the user sees: one text line and the lamps.
type Status struct {
	Text    string    `json:"text"`
	Lamp    Lamp      `json:"lamp"`
	Updated time.Time `json:"updated"`
}

// Sink receives every status change.
type Sink interface {
	ShowStatus(Status)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Status)

func (f SinkFunc) ShowStatus(s Status) { f(s) }

// Board holds the current status. Updates replace the whole value and are
// forwarded to the attached sinks in order.
type Board struct {
	cur atomic.Pointer[Status]

	mu    sync.Mutex
	sinks []Sink
}

// NewBoard starts with text and lamp.
func NewBoard(text string, lamp Lamp) *Board {
	b := &Board{}
	b.cur.Store(&Status{Text: text, Lamp: lamp, Updated: time.Now()})
	return b
}

// Current returns the latest status.
func (b *Board) Current() Status {
	return *b.cur.Load()
}

// Attach adds s and immediately shows it the current status.
func (b *Board) Attach(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
	s.ShowStatus(b.Current())
}

// Show changes the text and keeps the lamps.
func (b *Board) Show(text string) {
	b.Set(text, b.Current().Lamp)
}

// Set changes text and lamps together.
func (b *Board) Set(text string, lamp Lamp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := &Status{Text: text, Lamp: lamp, Updated: time.Now()}
	b.cur.Store(st)
	for _, s := range b.sinks {
		s.ShowStatus(*st)
	}
}

// StatusLine draws each status on an Adapter's status row.
type StatusLine struct {
	Adapter Adapter
}

func (l StatusLine) ShowStatus(s Status) {
	if err := l.Adapter.RenderText(StatusX, StatusY, s.Text); err != nil {
		Logf("ui: render status: %v", err)
	}
}
