// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/gesture_lock/internal/events"
)

// edgePoll bounds each WaitForEdge so Run notices cancellation.
const edgePoll = 100 * time.Millisecond

// DataReadyLine raises a signal on every rising edge of the gyro's
// DRDY/INT2 pin.
type DataReadyLine struct {
	pin    gpio.PinIn
	signal *events.Signal
}

// OpenDataReadyLine looks up pinName in the periph GPIO registry.
func OpenDataReadyLine(pinName string, sig *events.Signal) (*DataReadyLine, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("data ready: pin %q not found", pinName)
	}
	return NewDataReadyLine(p, sig)
}

// NewDataReadyLine configures pin as a pulled-down rising-edge input.
func NewDataReadyLine(pin gpio.PinIn, sig *events.Signal) (*DataReadyLine, error) {
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("data ready: configure %s: %w", pin, err)
	}
	return &DataReadyLine{pin: pin, signal: sig}, nil
}

// Prime raises the signal when the line is already high and nothing is
// pending. The gyro holds DRDY high until its output is read, so a sample
// produced before the watcher started would otherwise never give an edge.
func (d *DataReadyLine) Prime() {
	if !d.signal.Pending() && d.pin.Read() == gpio.High {
		log.Printf("data ready: line already high at start, raising")
		d.signal.Raise()
	}
}

// Run raises the signal for each rising edge until ctx is done.
func (d *DataReadyLine) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if d.pin.WaitForEdge(edgePoll) {
			d.signal.Raise()
		}
	}
	return nil
}
