// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package match compares an attempt against the enrolled gesture.
package match

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// DefaultThreshold is the per-axis correlation an attempt must exceed.
const DefaultThreshold = 0.3

// ErrSizeMismatch is returned by Correlate for unequal-length inputs.
var ErrSizeMismatch = errors.New("match: sequences differ in length")

// Correlate returns the Pearson coefficient of a and b.
//
// On a length mismatch it returns 0 and ErrSizeMismatch. A constant input
// makes the denominator zero and the result NaN.
func Correlate(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrSizeMismatch
	}
	n := float64(len(a))
	sa, sb := floats.Sum(a), floats.Sum(b)
	sab := floats.Dot(a, b)
	saa := floats.Dot(a, a)
	sbb := floats.Dot(b, b)

	num := n*sab - sa*sb
	den := math.Sqrt((n*saa - sa*sa) * (n*sbb - sb*sb))
	return num / den, nil
}

// Coefficients correlates each axis of ref and attempt after truncating the
// longer projection to the length of the shorter.
func Coefficients(ref, attempt gesture.Sequence) [3]float64 {
	n := min(len(ref), len(attempt))
	var out [3]float64
	for i := 0; i < 3; i++ {
		// equal lengths after truncation, error is impossible
		out[i], _ = Correlate(ref.Axis(i)[:n], attempt.Axis(i)[:n])
	}
	return out
}

// Decide accepts only when every axis strictly exceeds threshold. NaN never
// passes.
func Decide(coeffs [3]float64, threshold float64) bool {
	for _, r := range coeffs {
		if !(r > threshold) {
			return false
		}
	}
	return true
}

// Match runs the per-axis correlation rule against threshold.
func Match(ref, attempt gesture.Sequence, threshold float64) Result {
	coeffs := Coefficients(ref, attempt)
	return Result{
		Strategy: StrategyCorrelation,
		Axes:     coeffs,
		Accepted: Decide(coeffs, threshold),
	}
}
