// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Raw represents a single raw gyroscope reading in sensor counts.
type Raw struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Axis returns the value of axis i (0=X, 1=Y, 2=Z).
func (r Raw) Axis(i int) int16 {
	switch i {
	case 0:
		return r.X
	case 1:
		return r.Y
	default:
		return r.Z
	}
}

// Calibrated is an offset-corrected, noise-gated angular rate in °/s.
type Calibrated struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Axis returns the value of axis i (0=X, 1=Y, 2=Z).
func (c Calibrated) Axis(i int) float64 {
	switch i {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// Array returns the sample as a 3-vector.
func (c Calibrated) Array() [3]float64 {
	return [3]float64{c.X, c.Y, c.Z}
}

// RawSource is anything that can produce raw gyroscope readings.
type RawSource interface {
	ReadRaw() (Raw, error)
}
