package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"esas/internal/attendance"
	"esas/internal/config"
	"esas/internal/notify"
	"esas/internal/queue"
	"esas/internal/store"
)

// Worker consumes check-in events from redis and writes student notifications.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; with the memory queue the api notifies in-process")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	svc := attendance.NewService(attendance.NewRepository(db.Client), nil)
	notifier := notify.NewNotifier(svc, notify.NewRepository(db.Client))

	log.Println("worker started, waiting for messages...")
	if err := notifier.Run(ctx, q); err != nil && ctx.Err() == nil {
		log.Printf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
