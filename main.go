package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/db"
	"github.com/danielhkuo/election-tally/declaration"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/notify"
	"github.com/danielhkuo/election-tally/router"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Code delivery
	var notifier notify.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic, slog.Default())
		defer kn.Close()
		notifier = kn
		slog.Info("One-time codes via kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.NotifyTopic)
	} else {
		slog.Warn("no kafka brokers configured, one-time codes will be logged")
		notifier = notify.NewLogNotifier(slog.Default())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go declaration.NewSweeper(dbConn, cfg.SweepInterval).Run(ctx)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(router.NewRouter(dbConn, cfg, notifier)),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
