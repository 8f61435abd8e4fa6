// Package main implements the seed CLI: it loads a posts dataset into the
// backend row store so the dashboard can run in remote mode.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SophHealth/soph-mvp/engine/domain"
	"github.com/SophHealth/soph-mvp/pkg/backend"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		file = flag.String("file", "", "path to a posts JSON file (required)")
		rps  = flag.Float64("rate", 10, "insert rate, rows per second")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -file posts.json [-rate 10]")
		os.Exit(2)
	}

	if err := run(*file, *rps, logger); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(file string, rps float64, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := backend.Config{
		Neo4jURL:  os.Getenv("NEO4J_URL"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),
		NATSURL:   os.Getenv("NATS_URL"),
	}
	if !cfg.Configured() {
		return fmt.Errorf("NEO4J_URL and NATS_URL must be set")
	}

	posts, err := readPosts(file)
	if err != nil {
		return err
	}
	logger.Info("dataset read", "file", file, "posts", len(posts))

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	store := backend.NewNeo4jStore(driver, nc, logger)

	// Pace inserts so a large dataset does not flood the push channel.
	lim := rate.NewLimiter(rate.Limit(rps), 1)
	inserted := 0
	for _, post := range posts {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		if err := store.Insert(ctx, post); err != nil {
			return fmt.Errorf("insert %s: %w", post.ID, err)
		}
		inserted++
	}

	logger.Info("seed complete", "inserted", inserted)
	return nil
}

// readPosts parses the dataset file, filling in missing ids.
func readPosts(file string) ([]domain.RawPost, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var posts []domain.RawPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	for i := range posts {
		if posts[i].ID == "" {
			posts[i].ID = uuid.NewString()
		}
	}
	return posts, nil
}
