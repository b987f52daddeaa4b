package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendtrack/internal/attendance"
	"attendtrack/internal/config"
	"attendtrack/internal/queue"
	"attendtrack/internal/stats"
	"attendtrack/internal/store"
	"attendtrack/internal/users"
	"attendtrack/internal/worker"
)

// Worker consumes record events and keeps the cached monthly statistics current.
func main() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "worker ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("the memory queue is consumed inside the api process; set QUEUE_BACKEND=redis")
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Printf("WARNING: redis not reachable at %s, consumer will keep retrying", cfg.RedisAddr)
	}

	loc := cfg.Location()
	people := users.NewService(users.NewRepository(db.Client), nil, nil, nil, logger)
	records, err := attendance.NewService(attendance.NewRepository(db.Client), people, queue.Discard{}, attendance.Options{
		Location:  loc,
		LateAfter: cfg.LateAfter,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("attendance service: %v", err)
	}
	statsSvc := stats.NewService(records, people, stats.NewAggregator(loc, logger),
		stats.NewRedisCache(redisClient.Client, cfg.SnapshotTTL), logger)

	// Warm the cache so the dashboard has a month snapshot before the first event.
	if _, err := statsSvc.RefreshMonth(ctx); err != nil {
		logger.Printf("initial monthly refresh failed: %v", err)
	}

	w := &worker.Worker{Queue: queue.NewRedisQueue(redisClient.Client, queue.DefaultKey), Stats: statsSvc, Logger: logger}
	logger.Println("worker started, waiting for messages...")
	if err := w.Run(ctx); err != nil {
		logger.Fatalf("queue consume failed: %v", err)
	}
	logger.Println("worker stopped")
}
