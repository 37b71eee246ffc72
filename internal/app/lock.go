// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/gesture_lock/internal/acquisition"
	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/gyro"
	"github.com/relabs-tech/gesture_lock/internal/match"
	"github.com/relabs-tech/gesture_lock/internal/metrics"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/storage"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

// lockHooks let front ends replace parts of the hardware setup.
type lockHooks struct {
	mock  *sensors.MockGyro // used in mock mode instead of a fresh one
	touch ui.TouchSource    // replaces the configured touch input
	sinks []ui.Sink         // extra status sinks
}

// RunLock starts every task of the lock and blocks until ctx is done or a
// task fails.
func RunLock(ctx context.Context, cfg *config.Config) error {
	return runLock(ctx, cfg, lockHooks{})
}

func runLock(ctx context.Context, cfg *config.Config, hooks lockHooks) error {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	signals := events.New()

	// --- sensor and data-ready source ---
	var dev gyro.Device
	var dataReady func(context.Context) error
	if cfg.UseMockSensor {
		log.Println("lock: using mock gyro")
		mock := hooks.mock
		if mock == nil {
			mock = sensors.NewMockGyro(sensors.Wave)
		}
		dev = mock
		dataReady = func(ctx context.Context) error {
			return sensors.RunMockDataReady(ctx, signals.SensorDataReady, cfg.GyroODR)
		}
	} else {
		g, err := sensors.OpenL3GD20(cfg.GyroSPIDevice, physic.Frequency(cfg.GyroSPISpeedHz)*physic.Hertz)
		if err != nil {
			return err
		}
		defer g.Close()
		dev = g

		line, err := sensors.OpenDataReadyLine(cfg.GyroDRDYPin, signals.SensorDataReady)
		if err != nil {
			return err
		}
		dataReady = func(ctx context.Context) error {
			line.Prime()
			return line.Run(ctx)
		}
	}
	driver := gyro.NewDriver(dev, cfg.CalibrationDelay())
	defer func() {
		if err := driver.Shutdown(); err != nil {
			log.Printf("lock: %v", err)
		}
	}()

	// --- reference store and session log ---
	store := gesture.NewStore()
	var db *storage.SQLiteStore
	var mirror *acquisition.Mirror
	if cfg.StorePath != "" {
		db, err = storage.Open(cfg.StorePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.PersistReference {
			mirror = &acquisition.Mirror{Store: db, Address: cfg.StoreAddress}
			restoreReference(store, db, cfg.StoreAddress)
		}
	}
	m.SetEnrolled(store.Enrolled())

	strategy, err := match.NewStrategy(cfg.MatchStrategy, cfg.MatchThreshold, cfg.DTWMaxDistance)
	if err != nil {
		return err
	}
	log.Printf("lock: matching with %s", strategy.Name())

	// --- screen, buttons and lamps ---
	board := ui.NewBoard(acquisition.IdleStatus(store.Enrolled()))
	adapter, closeUI, err := openUI(cfg, board)
	if err != nil {
		return err
	}
	defer closeUI()
	if hooks.touch != nil {
		adapter.Touch = hooks.touch
	}
	for _, sink := range hooks.sinks {
		board.Attach(sink)
	}
	if err := ui.DrawHome(adapter, board.Current()); err != nil {
		return fmt.Errorf("ui: draw home: %w", err)
	}
	board.Attach(ui.StatusLine{Adapter: adapter})

	raise := func(r events.Request, source string) {
		m.Request(source, r.String())
		signals.Raise(r)
	}

	ctrl := acquisition.New(acquisition.Config{
		Rate:           cfg.GyroODR,
		Scale:          cfg.GyroScale,
		PromptDelay:    cfg.PromptDelay(),
		RecordWindow:   cfg.RecordWindow(),
		SampleInterval: cfg.SampleInterval(),
	}, driver, signals, store, strategy, board, mirror)
	ctrl.Observe(metricsObserver(m, store))
	if db != nil {
		ctrl.Observe(sessionRecorder(db, strategy.Name()))
	}

	// --- MQTT bridge ---
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDLock)
		if err != nil {
			log.Printf("lock: continuing without MQTT: %v", err)
		} else {
			defer client.Disconnect(250)
			bridge := NewBridge(client, cfg.TopicStatus, cfg.TopicResult, raise, m.PublishError)
			if err := bridge.Subscribe(cfg.TopicCommand); err != nil {
				return err
			}
			board.Attach(bridge)
			ctrl.Observe(bridge)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// --- web server ---
	if cfg.WebServerPort > 0 {
		var sessions SessionLog
		if db != nil {
			sessions = db
		}
		web := NewWebServer(WebDeps{
			Board:    board,
			State:    ctrl.State,
			Enrolled: store.Enrolled,
			Raise:    raise,
			Sessions: sessions,
			Metrics:  m.Handler(),
			Static:   "web",
		})
		board.Attach(web)
		ctrl.Observe(web)
		g.Go(func() error {
			return web.Run(ctx, fmt.Sprintf(":%d", cfg.WebServerPort))
		})
	}

	input := &ui.InputTask{
		Adapter:  adapter,
		Buttons:  ui.Buttons(),
		Raise:    func(r events.Request) { raise(r, "touch") },
		Poll:     cfg.TouchPoll(),
		Debounce: cfg.Debounce(),
	}
	g.Go(func() error { return dataReady(ctx) })
	g.Go(func() error { return input.Run(ctx) })
	g.Go(func() error { return ctrl.Run(ctx) })

	log.Printf("lock: ready (%s)", board.Current().Text)
	err = g.Wait()
	log.Println("lock: shutting down")
	return err
}

func restoreReference(store *gesture.Store, bs gesture.BlobStore, address uint32) {
	err := store.Restore(bs, address)
	switch {
	case err == nil:
		log.Printf("lock: reference restored from 0x%08X", address)
	case errors.Is(err, storage.ErrNotFound):
		log.Printf("lock: no stored reference at 0x%08X", address)
	default:
		log.Printf("lock: reference restore failed: %v", err)
	}
}

// openUI builds the adapter: the SSD1306 panel or an in-memory screen for
// output, push buttons or the in-memory screen for input. Lamps follow the
// board in hardware mode.
func openUI(cfg *config.Config, board *ui.Board) (ui.Split, func(), error) {
	virtual := ui.NewVirtual()
	split := ui.Split{Screen: virtual, Touch: virtual}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DisplayEnabled {
		panel, bus, err := ui.OpenPanel(cfg.DisplayI2CBus)
		if err != nil {
			return ui.Split{}, nil, err
		}
		closers = append(closers, func() { bus.Close() })
		split.Screen = panel
	}

	if !cfg.UseMockSensor {
		buttons, err := ui.OpenGPIOButtons(cfg.ButtonRecordPin, cfg.ButtonUnlockPin)
		if err != nil {
			closeAll()
			return ui.Split{}, nil, err
		}
		split.Touch = buttons

		lamps, err := ui.OpenLamps(cfg.LampLockedPin, cfg.LampUnlockedPin)
		if err != nil {
			closeAll()
			return ui.Split{}, nil, err
		}
		board.Attach(lamps)
		closers = append(closers, func() { lamps.ShowStatus(ui.Status{Lamp: ui.LampOff}) })
	}
	return split, closeAll, nil
}

func metricsObserver(m *metrics.Metrics, store *gesture.Store) acquisition.Observer {
	return acquisition.ObserverFunc(func(s acquisition.Session) {
		m.RecordSession(s.Kind, string(s.Outcome), s.Samples, s.Duration)
		if s.Match != nil {
			m.RecordMatch(s.Match.Axes, s.Match.Distance)
		}
		if s.Outcome == acquisition.OutcomeSensorError {
			m.SensorError()
		}
		m.SetEnrolled(store.Enrolled())
	})
}

// sessionRecorder appends each session to the SQLite log.
func sessionRecorder(db *storage.SQLiteStore, strategy string) acquisition.Observer {
	return acquisition.ObserverFunc(func(s acquisition.Session) {
		rec := storage.SessionRecord{
			ID:        s.ID,
			Kind:      s.Kind,
			Samples:   s.Samples,
			Outcome:   string(s.Outcome),
			StartedAt: s.StartedAt,
			Duration:  s.Duration,
		}
		if s.Match != nil {
			rec.Strategy = strategy
			rec.Axes = s.Match.Axes
			if !math.IsInf(s.Match.Distance, 0) {
				rec.Distance = s.Match.Distance
			}
		}
		if err := db.RecordSession(rec); err != nil {
			log.Printf("lock: %v", err)
		}
	})
}
