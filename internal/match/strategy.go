// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package match

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// Strategy names accepted by MATCH_STRATEGY.
const (
	StrategyCorrelation = "correlation"
	StrategyDTW         = "dtw"
)

// Result is the outcome of comparing one attempt with the reference.
// Axes is always filled; Distance is set by the dtw strategy only.
type Result struct {
	Strategy string     `json:"strategy"`
	Axes     [3]float64 `json:"axes"`
	Distance float64    `json:"distance,omitempty"`
	Accepted bool       `json:"accepted"`
}

// MarshalJSON writes undefined coefficients and an infinite distance as
// null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	var axes [3]*float64
	for i, v := range r.Axes {
		if !math.IsNaN(v) {
			axes[i] = &v
		}
	}
	var dist *float64
	if r.Distance != 0 && !math.IsInf(r.Distance, 0) {
		dist = &r.Distance
	}
	return json.Marshal(struct {
		plain
		Axes     [3]*float64 `json:"axes"`
		Distance *float64    `json:"distance,omitempty"`
	}{plain(r), axes, dist})
}

// Strategy decides whether attempt is a performance of ref.
type Strategy interface {
	Name() string
	Compare(ref, attempt gesture.Sequence) Result
}

// Correlation is the default strategy: every axis must correlate above
// Threshold.
type Correlation struct {
	Threshold float64
}

func (c Correlation) Name() string { return StrategyCorrelation }

func (c Correlation) Compare(ref, attempt gesture.Sequence) Result {
	return Match(ref, attempt, c.Threshold)
}

// DTWDistance accepts when the warping distance is at most MaxDistance.
// Per-axis coefficients are still reported for diagnostics.
type DTWDistance struct {
	MaxDistance float64
}

func (d DTWDistance) Name() string { return StrategyDTW }

func (d DTWDistance) Compare(ref, attempt gesture.Sequence) Result {
	dist := DTW(ref, attempt)
	return Result{
		Strategy: StrategyDTW,
		Axes:     Coefficients(ref, attempt),
		Distance: dist,
		Accepted: !math.IsInf(dist, 1) && dist <= d.MaxDistance,
	}
}

// NewStrategy builds the strategy called name.
func NewStrategy(name string, threshold, maxDistance float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyCorrelation:
		return Correlation{Threshold: threshold}, nil
	case StrategyDTW:
		if maxDistance <= 0 {
			return nil, fmt.Errorf("match: dtw needs a positive max distance, got %v", maxDistance)
		}
		return DTWDistance{MaxDistance: maxDistance}, nil
	default:
		return nil, fmt.Errorf("match: unknown strategy %q", name)
	}
}
