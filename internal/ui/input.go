// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ui

import (
	"context"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/events"
)

// InputTask polls the touch surface and raises the request of the pressed
// button after a debounce pause.
type InputTask struct {
	Adapter  Adapter
	Buttons  []Button
	Raise    func(events.Request)
	Poll     time.Duration
	Debounce time.Duration
}

// Run polls until ctx is done.
func (t *InputTask) Run(ctx context.Context) error {
	tick := time.NewTicker(t.Poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}

		p, ok := t.Adapter.PollTouch()
		if !ok {
			continue
		}
		for _, b := range t.Buttons {
			if !b.Contains(p) {
				continue
			}
			// a held finger is not a second press
			if !sleepCtx(ctx, t.Debounce) {
				return nil
			}
			Logf("ui: %s pressed at (%d,%d)", b.Label, p.X, p.Y)
			t.Raise(b.Request)
			break
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
