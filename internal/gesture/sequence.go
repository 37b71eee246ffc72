// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gesture holds captured motion traces and the enrolled reference.
package gesture

import (
	"math"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// ZeroEpsilon is the magnitude at or below which an axis counts as still.
const ZeroEpsilon = 1e-5

// Sequence is a time-ordered gesture trace in °/s.
type Sequence []imu.Calibrated

// Axis returns the projection of s onto axis i.
func (s Sequence) Axis(i int) []float64 {
	out := make([]float64, len(s))
	for k, v := range s {
		out[k] = v.Axis(i)
	}
	return out
}

// Clone returns an independent copy of s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

func nearZero(v imu.Calibrated) bool {
	return math.Abs(v.X) <= ZeroEpsilon &&
		math.Abs(v.Y) <= ZeroEpsilon &&
		math.Abs(v.Z) <= ZeroEpsilon
}

// Trim drops leading and trailing samples whose three axes are all within
// ZeroEpsilon of zero. A sequence with no motion trims to empty. The result
// shares storage with s.
func Trim(s Sequence) Sequence {
	left := 0
	for left < len(s) && nearZero(s[left]) {
		left++
	}
	if left == len(s) {
		return s[:0]
	}
	right := len(s) - 1
	for right > left && nearZero(s[right]) {
		right--
	}
	return s[left : right+1]
}

// TravelDistance integrates |linear velocity|·dt per axis over s.
func TravelDistance(s Sequence, dt time.Duration) [3]float64 {
	var d [3]float64
	sec := dt.Seconds()
	for _, v := range s {
		for i := 0; i < 3; i++ {
			d[i] += math.Abs(gyro.LinearVelocity(v.Axis(i)) * sec)
		}
	}
	return d
}
