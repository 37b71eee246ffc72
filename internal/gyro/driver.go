// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gyro configures a triaxial rotation-rate sensor, measures its
// zero-rate offset and noise floor, and turns raw counts into °/s.
package gyro

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// CalibrationSamples is the number of raw readings averaged during Calibrate.
const CalibrationSamples = 128

// calibrationShift divides the offset sums by CalibrationSamples.
const calibrationShift = 7

// DefaultCalibrationDelay is the pause between calibration readings.
const DefaultCalibrationDelay = 10 * time.Millisecond

// ErrUnknownScale is returned by Configure for a scale code with no sensitivity.
var ErrUnknownScale = errors.New("gyro: unrecognized full-scale range")

// Logf is the package logger. Tests may replace it.
var Logf = log.Printf

// Device is the register-level access the driver needs from the sensor chip.
type Device interface {
	imu.RawSource
	WriteRegister(addr, value byte) error
}

// Profile is the calibration state of one acquisition session.
type Profile struct {
	Rate        Rate
	Scale       Scale
	Sensitivity float64 // °/s per count
	Offset      imu.Raw // zero-rate level, mean of CalibrationSamples readings
	Threshold   imu.Raw // largest raw reading seen while calibrating
	Calibrated  bool
}

// Apply offset-corrects raw, zeroes every axis whose magnitude is below the
// absolute raw threshold, and scales the result to °/s.
func (p Profile) Apply(raw imu.Raw) imu.Calibrated {
	var out [3]float64
	for i := 0; i < 3; i++ {
		v := int32(raw.Axis(i)) - int32(p.Offset.Axis(i))
		// The gate compares a corrected value with a raw-domain threshold.
		if abs32(v) < abs32(int32(p.Threshold.Axis(i))) {
			v = 0
		}
		out[i] = float64(v) * p.Sensitivity
	}
	return imu.Calibrated{X: out[0], Y: out[1], Z: out[2]}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Driver owns a sensor Device and the live calibration Profile.
type Driver struct {
	dev   Device
	delay time.Duration
	sleep func(time.Duration)

	profile Profile
}

// NewDriver wraps dev. delay is the pause between calibration readings;
// zero selects DefaultCalibrationDelay and a negative value disables it.
func NewDriver(dev Device, delay time.Duration) *Driver {
	if delay == 0 {
		delay = DefaultCalibrationDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Driver{dev: dev, delay: delay, sleep: time.Sleep}
}

// Configure powers the sensor at rate, routes data-ready to INT2, selects
// scale and the matching sensitivity. An unrecognized scale leaves both the
// sensor and the sensitivity untouched and returns ErrUnknownScale.
func (d *Driver) Configure(rate Rate, scale Scale) (Profile, error) {
	sens, ok := scale.Sensitivity()
	if !ok {
		return d.profile, fmt.Errorf("%w: 0x%02X", ErrUnknownScale, byte(scale))
	}

	writes := []struct {
		reg, val byte
		name     string
	}{
		{RegCtrl1, byte(rate) | PowerOn, "CTRL_REG1"},
		{RegCtrl3, Int2DataReady, "CTRL_REG3"},
		{RegCtrl4, byte(scale), "CTRL_REG4"},
	}
	for _, w := range writes {
		if err := d.dev.WriteRegister(w.reg, w.val); err != nil {
			return d.profile, fmt.Errorf("gyro: write %s: %w", w.name, err)
		}
	}

	d.profile = Profile{Rate: rate, Scale: scale, Sensitivity: sens}
	Logf("gyro: configured rate %s, scale 0x%02X (%.5f dps/count)", rate, byte(scale), sens)
	return d.profile, nil
}

// Calibrate reads CalibrationSamples raw triples with the configured delay
// between them. The offset is the floored mean, the threshold the running
// maximum per axis. It blocks for roughly CalibrationSamples*delay.
func (d *Driver) Calibrate() (Profile, error) {
	var sum [3]int32
	thr := [3]int16{math.MinInt16, math.MinInt16, math.MinInt16}

	for i := 0; i < CalibrationSamples; i++ {
		raw, err := d.dev.ReadRaw()
		if err != nil {
			return d.profile, fmt.Errorf("gyro: calibration sample %d: %w", i, err)
		}
		for a := 0; a < 3; a++ {
			v := raw.Axis(a)
			sum[a] += int32(v)
			if v > thr[a] {
				thr[a] = v
			}
		}
		if d.delay > 0 {
			d.sleep(d.delay)
		}
	}

	d.profile.Offset = imu.Raw{
		X: int16(sum[0] >> calibrationShift),
		Y: int16(sum[1] >> calibrationShift),
		Z: int16(sum[2] >> calibrationShift),
	}
	d.profile.Threshold = imu.Raw{X: thr[0], Y: thr[1], Z: thr[2]}
	d.profile.Calibrated = true

	Logf("gyro: calibration done offset=(%d,%d,%d) threshold=(%d,%d,%d)",
		d.profile.Offset.X, d.profile.Offset.Y, d.profile.Offset.Z,
		d.profile.Threshold.X, d.profile.Threshold.Y, d.profile.Threshold.Z)
	return d.profile, nil
}

// ReadCalibrated reads one raw triple and applies the current profile.
func (d *Driver) ReadCalibrated() (imu.Calibrated, error) {
	raw, err := d.dev.ReadRaw()
	if err != nil {
		return imu.Calibrated{}, fmt.Errorf("gyro: read: %w", err)
	}
	return d.profile.Apply(raw), nil
}

// Profile returns a copy of the live calibration profile.
func (d *Driver) Profile() Profile {
	return d.profile
}

// Shutdown powers the sensor down.
func (d *Driver) Shutdown() error {
	if err := d.dev.WriteRegister(RegCtrl1, PowerOff); err != nil {
		return fmt.Errorf("gyro: power down: %w", err)
	}
	return nil
}
