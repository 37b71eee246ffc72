// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

const consoleHelp = "keys: r=record u=unlock w=wave gesture c=circle gesture q=quit"

// Console runs the whole lock against the mock gyro and drives it from a
// terminal. Each status change is printed as one line.
type Console struct {
	Gyro *sensors.MockGyro
	In   io.Reader
	Out  io.Writer

	mu sync.Mutex // serializes writes to Out
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{Gyro: sensors.NewMockGyro(sensors.Wave), In: in, Out: out}
}

// Run blocks until ctx is done, the input ends or "q" is read. The
// sensor, display and buttons settings of cfg are overridden.
func (c *Console) Run(ctx context.Context, cfg *config.Config) error {
	local := *cfg
	local.UseMockSensor = true
	local.DisplayEnabled = false

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := ui.NewVirtual()
	c.println(consoleHelp)
	go c.readKeys(keys, cancel)

	return runLock(ctx, &local, lockHooks{
		mock:  c.Gyro,
		touch: keys,
		sinks: []ui.Sink{ui.SinkFunc(func(s ui.Status) {
			c.println(fmt.Sprintf("[%-8s] %s", s.Lamp, s.Text))
		})},
	})
}

func (c *Console) readKeys(keys *ui.Virtual, quit context.CancelFunc) {
	defer quit()
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "":
		case "r", "record":
			keys.Press(ui.RecordButton)
		case "u", "unlock":
			keys.Press(ui.UnlockButton)
		case "w", "wave":
			c.Gyro.SetPattern(sensors.Wave)
			c.println("console: next gesture is the wave")
		case "c", "circle":
			c.Gyro.SetPattern(sensors.Circle)
			c.println("console: next gesture is the circle")
		case "q", "quit":
			return
		default:
			c.println(consoleHelp)
		}
	}
	if err := sc.Err(); err != nil {
		log.Printf("console: input: %v", err)
	}
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, line)
}
