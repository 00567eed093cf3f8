package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/unifinance/funding-radar/internal/ai"
	"github.com/unifinance/funding-radar/internal/api"
	"github.com/unifinance/funding-radar/internal/cache"
	"github.com/unifinance/funding-radar/internal/db"
	"github.com/unifinance/funding-radar/internal/identity"
	"github.com/unifinance/funding-radar/internal/ingest"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	aiClient := ai.NewClient(os.Getenv("GEMINI_ENDPOINT"), os.Getenv("GEMINI_API_KEY"))

	idClient := identity.NewClient(identity.Config{
		BaseURL:      os.Getenv("AUTH_BASE_URL"),
		AnonKey:      os.Getenv("AUTH_ANON_KEY"),
		RedirectBase: redirectBase(),
	})

	registry, err := ingest.LoadRegistry(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	acquirer := ingest.NewAcquirer(ingest.BuildSources(registry, aiClient))

	var snapshot ingest.SnapshotStore
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c, err := cache.New(ctx, redisURL)
		if err != nil {
			log.Printf("Redis unavailable, running without snapshot cache: %v", err)
		} else {
			defer c.Close()
			snapshot = c
		}
	}

	refresher := ingest.NewRefreshScheduler(acquirer, snapshot)
	if interval := os.Getenv("REFRESH_SCHEDULE"); interval != "" {
		refresher.Schedule = interval
	}
	if err := refresher.Start(ctx); err != nil {
		log.Fatalf("Failed to start refresh scheduler: %v", err)
	}
	defer refresher.Stop()

	srv := api.NewServer(pool, aiClient, idClient, refresher)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(ctx, ":"+port); err != nil {
		log.Fatal(err)
	}
}

// redirectBase picks the OAuth redirect origin for the current deployment
// environment.
func redirectBase() string {
	if base := os.Getenv("SITE_URL"); base != "" {
		return base
	}
	if os.Getenv("APP_ENV") == "production" {
		return "https://app.unifinance.co.uk"
	}
	return "http://localhost:5173"
}
