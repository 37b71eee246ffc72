// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// Pattern returns the simulated rotation in raw counts at t seconds into a
// gesture.
type Pattern func(t float64) [3]float64

// Wave is the stock simulated gesture: a wrist roll with a flick on Y.
func Wave(t float64) [3]float64 {
	return [3]float64{
		3000 * math.Sin(2*math.Pi*t/1.5),
		2200 * math.Sin(4*math.Pi*t/1.5+0.4),
		1200 * math.Cos(2*math.Pi*t/1.5),
	}
}

// Circle is a second, distinct simulated gesture.
func Circle(t float64) [3]float64 {
	return [3]float64{
		2500 * math.Cos(2*math.Pi*t),
		-2500 * math.Sin(2*math.Pi*t),
		-800 * math.Sin(6*math.Pi*t),
	}
}

// MockGyro simulates the gyro for bench runs without hardware. Writing a
// non-zero CTRL_REG1 value restarts the script: the device stays still for
// Settle, performs Pattern for Duration, then goes still again.
type MockGyro struct {
	Bias     imu.Raw
	Noise    int16
	Settle   time.Duration
	Duration time.Duration

	mu      sync.Mutex
	pattern Pattern
	start   time.Time
	powered bool
	regs    map[byte]byte
	rng     *rand.Rand
	now     func() time.Time
}

// NewMockGyro returns a simulated gyro performing pattern.
func NewMockGyro(pattern Pattern) *MockGyro {
	return &MockGyro{
		Bias:     imu.Raw{X: 24, Y: -18, Z: 9},
		Noise:    4,
		Settle:   1500 * time.Millisecond,
		Duration: 3 * time.Second,
		pattern:  pattern,
		regs:     map[byte]byte{gyro.RegWhoAmI: 0xD4},
		rng:      rand.New(rand.NewSource(1)),
		now:      time.Now,
	}
}

// SetPattern changes the gesture performed after the next power-on.
func (m *MockGyro) SetPattern(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pattern = p
}

func (m *MockGyro) ReadRegister(addr byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr], nil
}

func (m *MockGyro) WriteRegister(addr, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
	if addr == gyro.RegCtrl1 {
		m.powered = value != gyro.PowerOff
		if m.powered {
			m.start = m.now()
		}
	}
	return nil
}

func (m *MockGyro) ReadRaw() (imu.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.powered {
		return imu.Raw{}, nil
	}
	var motion [3]float64
	t := m.now().Sub(m.start) - m.Settle
	if t >= 0 && t < m.Duration && m.pattern != nil {
		motion = m.pattern(t.Seconds())
	}
	jitter := func() float64 {
		if m.Noise == 0 {
			return 0
		}
		return float64(m.rng.Intn(2*int(m.Noise)+1) - int(m.Noise))
	}
	return imu.Raw{
		X: clamp16(float64(m.Bias.X) + motion[0] + jitter()),
		Y: clamp16(float64(m.Bias.Y) + motion[1] + jitter()),
		Z: clamp16(float64(m.Bias.Z) + motion[2] + jitter()),
	}, nil
}

func clamp16(v float64) int16 {
	return int16(max(math.MinInt16, min(math.MaxInt16, math.Round(v))))
}

// RunMockDataReady raises sig at the rate's output frequency until ctx is
// done, standing in for the DRDY interrupt.
func RunMockDataReady(ctx context.Context, sig *events.Signal, rate gyro.Rate) error {
	t := time.NewTicker(time.Second / time.Duration(rate.Hz()))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			sig.Raise()
		}
	}
}
