package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skill-recommender/internal/bootstrap"
	"skill-recommender/internal/retrain"
	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/server"
	"skill-recommender/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := bootstrap.Build(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.LoadModel(ctx); err != nil {
		telemetry.Error("api.model_load_failed", map[string]any{"error": err})
	}

	addr := server.Addr(cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := retrain.NewSupervisor("skill-recommender", telemetry.Logger("supervisor"))
	sup.Add(server.NewService(httpServer, 15*time.Second))
	app.Supervise(sup)

	telemetry.Info("api.starting", map[string]any{
		"addr":         addr,
		"env":          cfg.Env,
		"retrain_mode": cfg.RetrainMode,
		"model":        cfg.ModelName,
		"version":      app.Model.Version(),
	})
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("supervisor: %v", err)
	}
	telemetry.Info("api.stopped", nil)
}
