// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ui is the lock's user surface: two buttons, a title and one status
// line, plus the locked/unlocked lamps.
package ui

import (
	"log"

	"github.com/relabs-tech/gesture_lock/internal/events"
)

// Logf is the package logger. Tests may replace it.
var Logf = log.Printf

// Point is a touch position in screen coordinates.
type Point struct {
	X, Y int
}

// Adapter renders the screen and reports touches.
type Adapter interface {
	RenderText(x, y int, text string) error
	RenderButton(x, y, w, h int, label string) error
	// PollTouch returns the current touch point, if any.
	PollTouch() (Point, bool)
}

// Button is a labelled hit rectangle that raises Request when pressed.
type Button struct {
	X, Y, W, H int
	Label      string
	Request    events.Request
}

// Contains reports whether p lies inside b, edges included.
func (b Button) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.W &&
		p.Y >= b.Y && p.Y <= b.Y+b.H
}

// Center returns the middle of b.
func (b Button) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Screen layout on a 240x320 portrait display.
var (
	RecordButton = Button{X: 60, Y: 80, W: 120, H: 50, Label: "RECORD", Request: events.RequestEnroll}
	UnlockButton = Button{X: 60, Y: 180, W: 120, H: 50, Label: "UNLOCK", Request: events.RequestAuthenticate}
)

const (
	Title  = "Armadillo Secure"
	TitleX = 5
	TitleY = 30

	StatusX = 5
	StatusY = 270
)

// Buttons returns the buttons shown on the home screen.
func Buttons() []Button {
	return []Button{RecordButton, UnlockButton}
}

// DrawHome renders the buttons, the title and the current status line.
func DrawHome(a Adapter, status Status) error {
	for _, b := range Buttons() {
		if err := a.RenderButton(b.X, b.Y, b.W, b.H, b.Label); err != nil {
			return err
		}
	}
	if err := a.RenderText(TitleX, TitleY, Title); err != nil {
		return err
	}
	return a.RenderText(StatusX, StatusY, status.Text)
}
