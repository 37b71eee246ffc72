// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided bench check for the gesture lock gyro.
//  1. Still: runs the driver calibration, then measures how much noise still
//     leaks through the dead band while the board rests on the table.
//  2. Gesture: records one window the way the lock does, trims it and
//     reports sample count, peak rates and travel per axis.
//
// Output:
//
//	Writes a JSON report in the working directory with date/time and a
//	confidence per phase.
//
// Run:
//
//	go run ./cmd/calibration -config gesture_lock_config.txt
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
)

const (
	stillDuration = 3 * time.Second

	// share of still samples allowed to pass the dead band
	leakGood = 0.02
	leakBad  = 0.25

	confFloor = 0.05
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type StillStats struct {
	Samples   int     `json:"samples"`
	Mean      Vec3    `json:"mean_dps"`
	StdDev    Vec3    `json:"stddev_dps"`
	LeakRatio float64 `json:"leak_ratio"`
}

type GestureStats struct {
	Captured int      `json:"captured"`
	Trimmed  int      `json:"trimmed"`
	Peak     Vec3     `json:"peak_dps"`
	Travel   Vec3     `json:"travel"`
	Notes    []string `json:"notes,omitempty"`
}

type Report struct {
	SchemaVersion int          `json:"schema_version"`
	CalibratedAt  string       `json:"calibrated_at"`
	Device        string       `json:"device"`
	Profile       gyro.Profile `json:"profile"`
	Still         StillStats   `json:"still"`
	Gesture       GestureStats `json:"gesture"`
	Confidence    struct {
		Still   float64 `json:"still"`
		Gesture float64 `json:"gesture"`
	} `json:"confidence"`
}

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	fmt.Println("=== Gesture lock gyro bench check ===")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fatal(fmt.Errorf("failed to load config from %s: %w", *configPath, err))
	}
	cfg := config.Get()

	signals := events.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dev gyro.Device
	name := "mock"
	if cfg.UseMockSensor {
		dev = sensors.NewMockGyro(sensors.Wave)
		go sensors.RunMockDataReady(ctx, signals.SensorDataReady, cfg.GyroODR)
	} else {
		g, err := sensors.OpenL3GD20(cfg.GyroSPIDevice, physic.Frequency(cfg.GyroSPISpeedHz)*physic.Hertz)
		if err != nil {
			fatal(err)
		}
		defer g.Close()
		line, err := sensors.OpenDataReadyLine(cfg.GyroDRDYPin, signals.SensorDataReady)
		if err != nil {
			fatal(err)
		}
		go func() {
			line.Prime()
			line.Run(ctx)
		}()
		dev = g
		name = fmt.Sprintf("%s (0x%02X)", cfg.GyroSPIDevice, g.ID())
	}
	driver := gyro.NewDriver(dev, cfg.CalibrationDelay())
	defer driver.Shutdown()

	rep := Report{SchemaVersion: 1, CalibratedAt: time.Now().Format(time.RFC3339), Device: name}

	// ---------------- Still ----------------
	fmt.Println("Step 1/2: dead band")
	fmt.Println("Place the board on a stable surface and do not touch it.")
	waitEnter(in, "Press ENTER to calibrate and measure for 3s...")

	if _, err := driver.Configure(cfg.GyroODR, cfg.GyroScale); err != nil {
		fatal(err)
	}
	if _, err := driver.Calibrate(); err != nil {
		fatal(err)
	}
	rep.Profile = driver.Profile()

	still, err := capture(ctx, driver, signals, stillDuration, cfg.SampleInterval())
	if err != nil {
		fatal(err)
	}
	rep.Still = stillStats(still)
	rep.Confidence.Still = leakConfidence(rep.Still.LeakRatio)
	fmt.Printf("Offset (counts): X=%d Y=%d Z=%d  threshold: X=%d Y=%d Z=%d\n",
		rep.Profile.Offset.X, rep.Profile.Offset.Y, rep.Profile.Offset.Z,
		rep.Profile.Threshold.X, rep.Profile.Threshold.Y, rep.Profile.Threshold.Z)
	fmt.Printf("Leak ratio %.3f | confidence=%.2f\n", rep.Still.LeakRatio, rep.Confidence.Still)

	// ---------------- Gesture ----------------
	fmt.Println("\nStep 2/2: sample gesture")
	fmt.Printf("Perform your gesture within %s after pressing ENTER.\n", cfg.RecordWindow())
	waitEnter(in, "Press ENTER to start recording...")

	raw, err := capture(ctx, driver, signals, cfg.RecordWindow(), cfg.SampleInterval())
	if err != nil {
		fatal(err)
	}
	rep.Gesture = gestureStats(raw, cfg.SampleInterval())
	rep.Confidence.Gesture = gestureConfidence(rep.Gesture)
	fmt.Printf("Kept %d of %d samples, peak (dps): X=%.1f Y=%.1f Z=%.1f | confidence=%.2f\n",
		rep.Gesture.Trimmed, rep.Gesture.Captured,
		rep.Gesture.Peak.X, rep.Gesture.Peak.Y, rep.Gesture.Peak.Z, rep.Confidence.Gesture)
	for _, n := range rep.Gesture.Notes {
		fmt.Println("note:", n)
	}

	if err := writeReport(rep); err != nil {
		fatal(err)
	}
}

// capture mirrors the lock's recording loop: one read per data-ready wait,
// then a fixed pause.
func capture(ctx context.Context, d *gyro.Driver, signals *events.Orchestrator, window, interval time.Duration) (gesture.Sequence, error) {
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	var seq gesture.Sequence
	for {
		if err := signals.WaitDataReady(wctx); err != nil {
			return seq, nil
		}
		s, err := d.ReadCalibrated()
		if err != nil {
			return nil, err
		}
		seq = append(seq, s)
		time.Sleep(interval)
	}
}

func toVec(a [3]float64) Vec3 {
	return Vec3{X: a[0], Y: a[1], Z: a[2]}
}

func stillStats(seq gesture.Sequence) StillStats {
	st := StillStats{Samples: len(seq)}
	if len(seq) == 0 {
		return st
	}
	var mean, sd [3]float64
	for i := 0; i < 3; i++ {
		mean[i], sd[i] = stat.PopMeanStdDev(seq.Axis(i), nil)
	}
	st.Mean, st.StdDev = toVec(mean), toVec(sd)

	leaked := 0
	for _, s := range seq {
		if s.X != 0 || s.Y != 0 || s.Z != 0 {
			leaked++
		}
	}
	st.LeakRatio = float64(leaked) / float64(len(seq))
	return st
}

func gestureStats(seq gesture.Sequence, dt time.Duration) GestureStats {
	trimmed := gesture.Trim(seq)
	st := GestureStats{Captured: len(seq), Trimmed: len(trimmed)}
	if len(trimmed) == 0 {
		st.Notes = append(st.Notes, "no_motion_detected")
		return st
	}
	var peak [3]float64
	for i := 0; i < 3; i++ {
		axis := trimmed.Axis(i)
		peak[i] = math.Max(floats.Max(axis), -floats.Min(axis))
		if peak[i] == 0 {
			st.Notes = append(st.Notes, fmt.Sprintf("axis_%c_flat", "xyz"[i]))
		}
	}
	st.Peak = toVec(peak)
	st.Travel = toVec(gesture.TravelDistance(trimmed, dt))
	if st.Trimmed == st.Captured {
		st.Notes = append(st.Notes, "motion_fills_window")
	}
	return st
}

// ---------- Confidence heuristics ----------

func leakConfidence(leak float64) float64 {
	switch {
	case leak <= leakGood:
		return 1.0
	case leak >= leakBad:
		return confFloor
	default:
		t := (leak - leakGood) / (leakBad - leakGood)
		return clamp01(1.0 - 0.95*t)
	}
}

// gestureConfidence drops for every axis that never moved: a flat axis has
// an undefined correlation and the lock will always reject it.
func gestureConfidence(st GestureStats) float64 {
	if st.Trimmed == 0 {
		return 0
	}
	c := 1.0
	for _, p := range []float64{st.Peak.X, st.Peak.Y, st.Peak.Z} {
		if p == 0 {
			c -= 0.4
		}
	}
	if st.Trimmed < 10 {
		c -= 0.3
	}
	return math.Max(c, confFloor)
}

func writeReport(rep Report) error {
	ts := time.Now().Format("2006-01-02T15-04-05Z07-00")
	name := fmt.Sprintf("%s_gesture_calibration.json", ts)

	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nWrote: %s\n", name)
	return nil
}

// ---------- Console helpers ----------

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
