package main

import (
	"flag"
	"log"
	"os"

	"PayPull/internal/di"
	"PayPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s provider=%s", cfg.Environment, cfg.Provider.Name)

	// Wire DI: connects Postgres, discovers the credential relation, and
	// prepares the transaction schema. Any failure here is fatal.
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
