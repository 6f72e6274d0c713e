// Command assetrisk-server accepts CSV uploads over HTTP, scores them and
// serves the results to dashboards over REST and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/assetrisk/internal/alerts"
	"github.com/obsidianstack/assetrisk/internal/api"
	"github.com/obsidianstack/assetrisk/internal/auth"
	"github.com/obsidianstack/assetrisk/internal/bus"
	"github.com/obsidianstack/assetrisk/internal/config"
	"github.com/obsidianstack/assetrisk/internal/pipeline"
	"github.com/obsidianstack/assetrisk/internal/store"
	"github.com/obsidianstack/assetrisk/internal/telemetry"
	"github.com/obsidianstack/assetrisk/internal/timestamp"
	"github.com/obsidianstack/assetrisk/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("assetrisk-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"dataset_ttl", cfg.Server.DatasetTTL,
		"base_risk_mode", cfg.Scoring.BaseRisk.Mode,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		os.Exit(1)
	}

	// Dataset store with background TTL eviction.
	st := store.New(cfg.Server.DatasetTTL)
	go st.Run(ctx)

	alertEngine, err := alerts.New(cfg.Alerts)
	if err != nil {
		slog.Error("failed to load alert rules", "err", err)
		os.Exit(1)
	}

	metrics := telemetry.New()
	metrics.TrackDatasets(st.Count)

	// WebSocket hub: dataset list every 5 seconds plus an event per upload.
	hub := ws.New(st, 5*time.Second)
	go hub.Run(ctx)

	apiHandler := api.New(p, api.Options{
		Store:          st,
		Alerts:         alertEngine,
		Metrics:        metrics,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	apiHandler.OnProcessed(func(e *store.Entry) {
		hub.Publish(ws.EventDatasetProcessed, st.Summarize(e))
	})

	if cfg.Server.NATS.URL != "" {
		pub, err := bus.NewPublisher(cfg.Server.NATS.URL, cfg.Server.NATS.Subject)
		if err != nil {
			// Uploads keep working without the bus.
			slog.Error("nats unavailable, events disabled", "url", cfg.Server.NATS.URL, "err", err)
		} else {
			defer pub.Close()
			apiHandler.OnProcessed(func(e *store.Entry) {
				ev := bus.NewDatasetEvent(e.ID, e.Name, e.Dataset, e.CreatedAt)
				if err := pub.Publish(ev); err != nil {
					slog.Warn("nats publish failed", "dataset", e.ID, "err", err)
				}
			})
			slog.Info("publishing dataset events", "subject", cfg.Server.NATS.Subject)
		}
	}

	// Hot reload: scoring, alert rules and log level follow the file.
	// Port, auth, TTL and NATS changes need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			np, err := buildPipeline(updated, logger)
			if err != nil {
				slog.Error("config reload rejected", "err", err)
				return
			}
			if err := alertEngine.SetRules(updated.Alerts); err != nil {
				slog.Error("config reload rejected", "err", err)
				return
			}
			apiHandler.SetProcessor(np)
			level.Set(updated.Log.SlogLevel())
			slog.Info("config hot-reloaded",
				"base_risk_mode", updated.Scoring.BaseRisk.Mode,
				"alert_rules", len(updated.Alerts.Rules),
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(apiHandler))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", metrics.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("assetrisk-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}

// buildPipeline assembles the scoring pipeline described by cfg.Scoring.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	loc, err := cfg.Scoring.Location()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Base:       cfg.Scoring.BaseFactory(),
		Workers:    cfg.Scoring.Workers,
		Normalizer: &timestamp.Normalizer{Location: loc, Logger: logger},
		Logger:     logger,
	}), nil
}
