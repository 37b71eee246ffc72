// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ui

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// Layout coordinates are for a 240x320 screen; the panel scales them.
const (
	layoutW = 240
	layoutH = 320
)

// Drawer is the part of an ssd1306.Dev the panel needs.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

type panelText struct {
	at   Point
	text string
}

// Panel renders the screen on a small monochrome display. Every render
// redraws the whole frame from the retained texts and buttons.
type Panel struct {
	mu      sync.Mutex
	dev     Drawer
	texts   []panelText
	buttons []Button
}

// NewPanel draws on dev.
func NewPanel(dev Drawer) *Panel {
	return &Panel{dev: dev}
}

// OpenPanel opens the SSD1306 on the named I2C bus ("" for the first one).
func OpenPanel(busName string) (*Panel, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	Logf("ui: display initialized on bus %q", busName)
	return NewPanel(dev), bus, nil
}

func (p *Panel) RenderText(x, y int, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	at := Point{X: x, Y: y}
	replaced := false
	for i := range p.texts {
		if p.texts[i].at == at {
			p.texts[i].text = text
			replaced = true
		}
	}
	if !replaced {
		p.texts = append(p.texts, panelText{at: at, text: text})
	}
	return p.redraw()
}

func (p *Panel) RenderButton(x, y, w, h int, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := Button{X: x, Y: y, W: w, H: h, Label: label}
	replaced := false
	for i := range p.buttons {
		if p.buttons[i].X == x && p.buttons[i].Y == y {
			p.buttons[i] = b
			replaced = true
		}
	}
	if !replaced {
		p.buttons = append(p.buttons, b)
	}
	return p.redraw()
}

// PollTouch always reports no touch; pair the panel with GPIOButtons.
func (p *Panel) PollTouch() (Point, bool) {
	return Point{}, false
}

func (p *Panel) scale(pt Point) image.Point {
	r := p.dev.Bounds()
	return image.Point{
		X: r.Min.X + pt.X*r.Dx()/layoutW,
		Y: r.Min.Y + pt.Y*r.Dy()/layoutH,
	}
}

func (p *Panel) redraw() error {
	bounds := p.dev.Bounds()
	img := image1bit.NewVerticalLSB(bounds)
	face := basicfont.Face7x13

	for _, b := range p.buttons {
		lo := p.scale(Point{X: b.X, Y: b.Y})
		hi := p.scale(Point{X: b.X + b.W, Y: b.Y + b.H})
		outline(img, image.Rectangle{Min: lo, Max: hi})
		labelW := len(b.Label) * face.Advance
		x := lo.X + (hi.X-lo.X-labelW)/2
		drawString(img, face, b.Label, image.Point{X: x, Y: hi.Y - 1})
	}
	for _, t := range p.texts {
		at := p.scale(t.at)
		// text coordinates name the glyph top; the drawer wants a baseline
		base := min(at.Y+face.Ascent, bounds.Max.Y-1)
		drawString(img, face, t.text, image.Point{X: at.X, Y: base})
	}
	return p.dev.Draw(bounds, img, image.Point{})
}

func outline(img draw.Image, r image.Rectangle) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		img.Set(x, r.Min.Y, image1bit.On)
		img.Set(x, r.Max.Y, image1bit.On)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		img.Set(r.Min.X, y, image1bit.On)
		img.Set(r.Max.X, y, image1bit.On)
	}
}

func drawString(img draw.Image, face *basicfont.Face, s string, baseline image.Point) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
		Dot:  fixed.P(baseline.X, baseline.Y),
	}
	d.DrawString(s)
}

// GPIOButtons reads active-low push buttons and reports a press as a touch
// in the middle of the matching on-screen button.
type GPIOButtons struct {
	pins    []gpio.PinIn
	buttons []Button
}

// NewGPIOButtons pairs pins[i] with buttons[i] and enables pull-ups.
func NewGPIOButtons(pins []gpio.PinIn, buttons []Button) (*GPIOButtons, error) {
	if len(pins) != len(buttons) {
		return nil, fmt.Errorf("%d pins for %d buttons", len(pins), len(buttons))
	}
	for _, p := range pins {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure button %s: %w", p, err)
		}
	}
	return &GPIOButtons{pins: pins, buttons: buttons}, nil
}

// OpenGPIOButtons looks the pins up by name.
func OpenGPIOButtons(record, unlock string) (*GPIOButtons, error) {
	var pins []gpio.PinIn
	for _, name := range []string{record, unlock} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown button pin %q", name)
		}
		pins = append(pins, p)
	}
	return NewGPIOButtons(pins, []Button{RecordButton, UnlockButton})
}

func (g *GPIOButtons) PollTouch() (Point, bool) {
	for i, p := range g.pins {
		if p.Read() == gpio.Low {
			return g.buttons[i].Center(), true
		}
	}
	return Point{}, false
}

// TouchSource reports touches without rendering anything.
type TouchSource interface {
	PollTouch() (Point, bool)
}

// Split draws on Screen and takes touches from Touch, e.g. a panel paired
// with push buttons.
type Split struct {
	Screen Adapter
	Touch  TouchSource
}

func (s Split) RenderText(x, y int, text string) error {
	return s.Screen.RenderText(x, y, text)
}

func (s Split) RenderButton(x, y, w, h int, label string) error {
	return s.Screen.RenderButton(x, y, w, h, label)
}

func (s Split) PollTouch() (Point, bool) {
	return s.Touch.PollTouch()
}

// Lamps drives the locked and unlocked indicator outputs.
type Lamps struct {
	Locked   gpio.PinOut
	Unlocked gpio.PinOut
}

// OpenLamps looks the pins up by name and turns both off.
func OpenLamps(locked, unlocked string) (*Lamps, error) {
	l := &Lamps{}
	for _, x := range []struct {
		name string
		dst  *gpio.PinOut
	}{{locked, &l.Locked}, {unlocked, &l.Unlocked}} {
		p := gpioreg.ByName(x.name)
		if p == nil {
			return nil, fmt.Errorf("unknown lamp pin %q", x.name)
		}
		*x.dst = p
	}
	if err := l.set(LampOff); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lamps) set(lamp Lamp) error {
	if err := l.Locked.Out(gpio.Level(lamp == LampLocked)); err != nil {
		return fmt.Errorf("locked lamp: %w", err)
	}
	if err := l.Unlocked.Out(gpio.Level(lamp == LampUnlocked)); err != nil {
		return fmt.Errorf("unlocked lamp: %w", err)
	}
	return nil
}

func (l *Lamps) ShowStatus(s Status) {
	if err := l.set(s.Lamp); err != nil {
		Logf("ui: %v", err)
	}
}
