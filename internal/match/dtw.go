// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package match

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// EuclideanDistance returns the L2 distance between two samples.
func EuclideanDistance(a, b imu.Calibrated) float64 {
	va, vb := a.Array(), b.Array()
	return floats.Distance(va[:], vb[:], 2)
}

// DTW returns the dynamic time warping distance between s and t over a
// (len(s)+1)×(len(t)+1) cumulative cost matrix. An empty input against a
// non-empty one is +Inf; two empty inputs are 0.
func DTW(s, t gesture.Sequence) float64 {
	n, m := len(s), len(t)
	prev := make([]float64, m+1)
	cur := make([]float64, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = math.Inf(1)
	}
	for i := 1; i <= n; i++ {
		cur[0] = math.Inf(1)
		for j := 1; j <= m; j++ {
			cost := EuclideanDistance(s[i-1], t[j-1])
			cur[j] = cost + min(prev[j], cur[j-1], prev[j-1])
		}
		prev, cur = cur, prev
	}
	return prev[m]
}
