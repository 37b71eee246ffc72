// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ui

import "sync"

// Virtual is an in-memory screen. Touches are queued with Touch or Press
// and reported once each by PollTouch.
type Virtual struct {
	mu      sync.Mutex
	texts   map[Point]string
	buttons []Button
	touches []Point
}

func NewVirtual() *Virtual {
	return &Virtual{texts: map[Point]string{}}
}

func (v *Virtual) RenderText(x, y int, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.texts[Point{X: x, Y: y}] = text
	return nil
}

func (v *Virtual) RenderButton(x, y, w, h int, label string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, b := range v.buttons {
		if b.X == x && b.Y == y {
			v.buttons[i] = Button{X: x, Y: y, W: w, H: h, Label: label}
			return nil
		}
	}
	v.buttons = append(v.buttons, Button{X: x, Y: y, W: w, H: h, Label: label})
	return nil
}

func (v *Virtual) PollTouch() (Point, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.touches) == 0 {
		return Point{}, false
	}
	p := v.touches[0]
	v.touches = v.touches[1:]
	return p, true
}

// Touch queues a touch at p.
func (v *Virtual) Touch(p Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touches = append(v.touches, p)
}

// Press queues a touch in the middle of b.
func (v *Virtual) Press(b Button) {
	v.Touch(b.Center())
}

// TextAt returns the text last rendered at (x, y).
func (v *Virtual) TextAt(x, y int) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.texts[Point{X: x, Y: y}]
}

// RenderedButtons returns the buttons drawn so far.
func (v *Virtual) RenderedButtons() []Button {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Button(nil), v.buttons...)
}
