package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuniesmith/fks-realtime/internal/channels"
	"github.com/nuniesmith/fks-realtime/internal/config"
	"github.com/nuniesmith/fks-realtime/internal/credentials"
	"github.com/nuniesmith/fks-realtime/internal/database"
	"github.com/nuniesmith/fks-realtime/internal/recorder"
	"github.com/nuniesmith/fks-realtime/internal/transport"
	"github.com/nuniesmith/fks-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamer.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"stream_url", cfg.Stream.URL,
		"channels", len(cfg.Stream.Channels),
		"recorder_enabled", cfg.Recorder.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database when recording
	var pool *pgxpool.Pool
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")
	}

	// Create transport client
	source := credentials.NewStaticSource(cfg.Stream.Token)
	client := transport.NewClient(streamConfig(cfg.Stream), source, logger)

	// Create recorder
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec = recorder.New(cfg.Recorder, cfg.Instance.ID, pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}

		client.OnMessage(rec.Record)
		client.OnStatusChange(func(st transport.Status) {
			rec.RecordStatus(st.String())
		})
	}

	// Subscribe configured channels before connecting; subscriptions replay
	// automatically once the socket opens.
	for _, channel := range cfg.Stream.Channels {
		channel := channel
		listener := func(msg channels.Message) {
			if rec != nil {
				rec.Record(msg)
				return
			}
			logger.Debug("frame", "channel", channel, "bytes", len(msg.Data))
		}
		client.Subscribe(channel, listener)
	}

	// Start health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, pool, client, rec),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	logger.Info("streamer running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	client.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if rec != nil {
		rec.Stop(shutdownCtx)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("streamer stopped")
}

// streamConfig maps the loaded YAML onto the transport config.
func streamConfig(s config.StreamConfig) transport.Config {
	cfg := transport.DefaultConfig()
	cfg.URL = s.URL
	cfg.HeartbeatInterval = s.HeartbeatInterval
	cfg.RotateInterval = s.RotateInterval
	cfg.Backoff.Lower = s.ReconnectBaseDelay
	cfg.Backoff.Upper = s.ReconnectMaxDelay
	cfg.Backoff.Jitter = s.ReconnectJitter
	cfg.MaxAttempts = s.MaxAttempts
	cfg.HandshakeTimeout = s.HandshakeTimeout
	cfg.WriteTimeout = s.WriteTimeout
	return cfg
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(path string, pool *pgxpool.Pool, client *transport.Client, rec *recorder.Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check transport
		status := client.Status()
		health.Components["stream"] = status.String()
		if status != transport.StatusOpen {
			health.Status = "degraded"
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		// Recorder throughput
		if rec != nil {
			stats := rec.Stats()
			buf := rec.BufferStats()
			health.Components["recorder"] = map[string]interface{}{
				"inserts":  stats.Inserts,
				"errors":   stats.Errors,
				"dropped":  stats.Dropped,
				"buffered": buf.Count,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
