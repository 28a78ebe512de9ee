package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/config"
	"marketplace-system/internal/connections/database"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/diagnostics"
	"marketplace-system/internal/microservices/checkout"
	"marketplace-system/internal/microservices/delivery"
	"marketplace-system/internal/microservices/notificator"
	"marketplace-system/internal/microservices/shop"
)

func main() {
	mode := flag.String("mode", "", "checkout-service | shop-service | delivery-service | notification-subscriber | desync-check")
	port := flag.Int("port", 0, "http port for services that expose HTTP")
	cfgPath := flag.String("config", "", "path to YAML config (default: probe config.yaml)")
	migrationsDir := flag.String("migrations", "migrations", "path to schema migrations")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		var err error
		path, err = config.FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config found: pass --config")
			os.Exit(2)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connect_failed", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database, *migrationsDir); err != nil {
		lg.Error("migrations_failed", err, nil)
		os.Exit(1)
	}

	if *mode == "desync-check" {
		checker := diagnostics.NewChecker(diagnostics.NewPGRepo(db), logger.New("desync-check"))
		desyncs, err := checker.Run(ctx)
		if err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
		if len(desyncs) > 0 {
			os.Exit(1)
		}
		return
	}

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		lg.Error("rabbitmq_connect_failed", err, nil)
		os.Exit(1)
	}
	defer rmq.Close()
	if err := rmq.DeclareTopology(); err != nil {
		lg.Error("rabbitmq_topology_failed", err, nil)
		os.Exit(1)
	}

	switch *mode {
	case "checkout-service":
		if *port == 0 {
			*port = 3000
		}
		lg.Info("service_started", map[string]any{"service": "checkout-service", "port": *port})
		err = checkout.Run(ctx, *port, db, rmq)
	case "shop-service":
		if *port == 0 {
			*port = 3001
		}
		lg.Info("service_started", map[string]any{"service": "shop-service", "port": *port})
		err = shop.Run(ctx, *port, db, rmq)
	case "delivery-service":
		if *port == 0 {
			*port = 3002
		}
		lg.Info("service_started", map[string]any{"service": "delivery-service", "port": *port})
		err = delivery.Run(ctx, *port, db, rmq)
	case "notification-subscriber":
		lg.Info("service_started", map[string]any{"service": "notification-subscriber"})
		err = notificator.Run(ctx, rmq)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: checkout-service | shop-service | delivery-service | notification-subscriber | desync-check")
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}
