package main

import (
	"flag"
	"log"
	"os"
	_ "time/tzdata" // session timezone on images without zoneinfo

	"CandleFlow/internal/di"
	"CandleFlow/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s port=%d session=%s %s-%s", cfg.Environment, cfg.Server.Port, cfg.Session.Timezone, cfg.Session.Open, cfg.Session.Close)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v topics=%s,%s", cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic, cfg.Kafka.MarkersTopic)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
