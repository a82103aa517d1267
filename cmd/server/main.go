package main

import (
	"flag"
	"log"
	"os"

	"github.com/pcashcroft/backtest/internal/di"
	"github.com/pcashcroft/backtest/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s snapshot=%s", cfg.Environment, cfg.Snapshot.Path)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)

	if err := app.Run(); err != nil {
		cleanup()
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
