package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"esas/internal/account"
	"esas/internal/attendance"
	"esas/internal/config"
	"esas/internal/httpapi"
	"esas/internal/notify"
	"esas/internal/queue"
	"esas/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := httpapi.Deps{Config: cfg, Health: map[string]httpapi.HealthCheck{}}
	var attStore attendance.Store
	var accStore account.Store

	switch cfg.StoreBackend {
	case "memory":
		if cfg.Production() {
			log.Println("warning: STORE_BACKEND=memory in production, data is lost on restart")
		}
		mem := attendance.NewMemoryStore(nil)
		accMem := account.NewMemoryStore()
		attStore, accStore = mem, accMem
		deps.Notifications = notify.NewMemoryStore(nil)
		deps.Accounts = account.NewService(accStore, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err := seedDemo(ctx, mem, deps.Accounts); err != nil {
			return err
		}
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx, db.Client); err != nil {
				return err
			}
			log.Println("database schema ensured")
		}
		attStore = attendance.NewRepository(db.Client)
		accStore = account.NewRepository(db.Client)
		deps.Notifications = notify.NewRepository(db.Client)
		deps.Accounts = account.NewService(accStore, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		deps.Health["db"] = db.Healthy
	}
	deps.Attendance = attendance.NewService(attStore, nil)

	switch cfg.QueueBackend {
	case "memory":
		q := queue.NewInMemory(256)
		deps.Queue = q
		// No separate worker reads the in-memory queue, so notify in-process.
		go func() {
			if err := notify.NewNotifier(deps.Attendance, deps.Notifications).Run(ctx, q); err != nil && ctx.Err() == nil {
				log.Printf("notifier stopped: %v", err)
			}
		}()
	default:
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		deps.Queue = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		deps.Health["redis"] = redisClient.Healthy
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (store=%s, queue=%s)", cfg.HTTPPort, cfg.StoreBackend, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
