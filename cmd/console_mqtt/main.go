package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/gesture_lock/internal/app"
	"github.com/relabs-tech/gesture_lock/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	flag.Parse()

	log.Println("starting gesture lock console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, config.Get(), os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
