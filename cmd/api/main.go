// Package main implements the Soph dashboard API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SophHealth/soph-mvp/engine/health"
	"github.com/SophHealth/soph-mvp/engine/stream"
	"github.com/SophHealth/soph-mvp/pkg/backend"
	"github.com/SophHealth/soph-mvp/pkg/metrics"
	"github.com/SophHealth/soph-mvp/pkg/mid"
	"github.com/SophHealth/soph-mvp/pkg/ws"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	NATSURL     string
	DatasetPath string
	CORSOrigin  string
	MinDelayMS  int
	MaxDelayMS  int
	AutoStart   bool
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Neo4jURL:    os.Getenv("NEO4J_URL"), // empty means no backend
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		NATSURL:     os.Getenv("NATS_URL"),
		DatasetPath: os.Getenv("DATASET_PATH"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MinDelayMS:  envOrInt("STREAM_MIN_DELAY_MS", 3000),
		MaxDelayMS:  envOrInt("STREAM_MAX_DELAY_MS", 5000),
		AutoStart:   envOr("STREAM_AUTOSTART", "true") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	// --- Connect to the backend (optional) ---
	store, closeBackend := openBackend(ctx, cfg, logger)
	defer closeBackend()

	// --- WebSocket hub ---
	hub := ws.NewHub(logger)
	go hub.Run()

	// --- Post stream ---
	src := stream.New(stream.Options{
		Backend:     store,
		DatasetPath: cfg.DatasetPath,
		MinDelay:    time.Duration(cfg.MinDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		OnUpdate:    func(snap stream.Snapshot) { hub.Broadcast("snapshot", snap) },
		OnNotice:    func(n stream.Notice) { hub.Broadcast("notice", n) },
		Logger:      logger,
		Metrics:     met,
	})
	if err := src.Load(ctx); err != nil {
		return fmt.Errorf("load posts: %w", err)
	}
	hub.OnConnect = func() (string, any) { return "snapshot", src.Snapshot() }

	// --- Facility stats simulator ---
	sim := health.NewSimulator(health.Options{
		OnUpdate: func(s health.Stats) { hub.Broadcast("stats", s) },
		Logger:   logger,
	})
	sim.Start()
	defer sim.Stop()

	if cfg.AutoStart {
		src.Start(ctx)
	}
	defer src.Stop()

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/dashboard", handleDashboard(src))
	mux.HandleFunc("GET /api/posts", handlePosts(src))
	mux.HandleFunc("GET /api/hotspots", handleHotspots(src))
	mux.HandleFunc("GET /api/misinfo", handleMisinfo(src))
	mux.HandleFunc("GET /api/timeline", handleTimeline(src))
	mux.HandleFunc("GET /api/signal", handleSignal(src))
	mux.HandleFunc("GET /api/stats", handleStats(sim))
	mux.HandleFunc("POST /api/stream/start", handleStreamStart(ctx, src))
	mux.HandleFunc("POST /api/stream/stop", handleStreamStop(src))
	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("soph-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// openBackend dials Neo4j and NATS when both are configured. Any failure
// degrades to the bundled dataset; the dashboard must come up regardless.
func openBackend(ctx context.Context, cfg Config, logger *slog.Logger) (backend.Store, func()) {
	bcfg := backend.Config{
		Neo4jURL:  cfg.Neo4jURL,
		Neo4jUser: cfg.Neo4jUser,
		Neo4jPass: cfg.Neo4jPass,
		NATSURL:   cfg.NATSURL,
	}
	if !bcfg.Configured() {
		logger.Info("backend not configured, using bundled dataset")
		return backend.NotConfigured{}, func() {}
	}

	driver, err := neo4j.NewDriverWithContext(bcfg.Neo4jURL, neo4j.BasicAuth(bcfg.Neo4jUser, bcfg.Neo4jPass, ""))
	if err != nil {
		logger.Error("neo4j driver", "err", err)
		return backend.NotConfigured{}, func() {}
	}
	nc, err := nats.Connect(bcfg.NATSURL)
	if err != nil {
		logger.Error("nats connect", "err", err)
		driver.Close(ctx)
		return backend.NotConfigured{}, func() {}
	}

	logger.Info("backend connected", "neo4j", bcfg.Neo4jURL, "nats", bcfg.NATSURL)
	store := backend.NewNeo4jStore(driver, nc, logger)
	return store, func() {
		nc.Close()
		driver.Close(context.Background())
	}
}
