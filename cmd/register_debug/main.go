// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/gesture_lock/internal/app"
	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/imu"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
)

type gyroDevice interface {
	app.RegisterDevice
	imu.RawSource
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	dump := flag.Bool("dump", false, "print the register map once and exit")
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	log.Println("starting L3GD20 register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	var dev gyroDevice
	if cfg.UseMockSensor {
		log.Println("using mock gyro")
		dev = sensors.NewMockGyro(sensors.Wave)
	} else {
		g, err := sensors.OpenL3GD20(cfg.GyroSPIDevice, physic.Frequency(cfg.GyroSPISpeedHz)*physic.Hertz)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		defer g.Close()
		log.Printf("gyro on %s, WHO_AM_I=0x%02X", cfg.GyroSPIDevice, g.ID())
		dev = g
	}

	if *dump {
		regs, err := sensors.DumpRegisters(dev)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		for _, r := range regs {
			fmt.Println(r)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", app.NewRegisterDebugHandler(dev))
	mux.HandleFunc("/api/gyro", app.HandleGyroData(dev))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("register debug tool listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
