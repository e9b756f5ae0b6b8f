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

	"filecache-api/internal/cache"
	"filecache-api/internal/config"
	"filecache-api/internal/database"
	"filecache-api/internal/events"
	"filecache-api/internal/handlers"
	"filecache-api/internal/realtime"
	"filecache-api/internal/routes"
	"filecache-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Fatal("Failed to create cache directory: ", err)
	}
	hasher := cache.Blake2bHasher{}
	store, err := cache.NewFileStore(hasher, cache.FileStoreConfig{
		Directory: cfg.CacheDir,
		Prefix:    cfg.Prefix,
		SkipProbe: cfg.SkipProbe,
	})
	if err != nil {
		log.Fatal("Failed to open cache store: ", err)
	}

	if err := database.InitDB(cfg.DBPath); err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}

	hub := realtime.GetHub()
	publishers := events.Multi{hub}
	if cfg.AMQPURL != "" {
		conn, ch, err := events.Connect(ctx, events.BrokerConfig{
			URL:        cfg.AMQPURL,
			Attempts:   cfg.AMQPAttempts,
			RetryDelay: cfg.AMQPRetryDelay,
		})
		if err != nil {
			log.Fatal("Failed to set up RabbitMQ: ", err)
		}
		defer conn.Close()
		publishers = append(publishers, events.NewRabbitPublisher(ch))
		log.Printf("Publishing cache events to exchange %s", events.ExchangeName)
	}

	svc := service.New(store, hasher, database.GetDB(), publishers)
	router := routes.SetupRoutes(handlers.NewCacheHandler(svc, cfg.DefaultTTL), hub)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (cache dir %s, prefix %q)", cfg.Port, cfg.CacheDir, cfg.Prefix)
		log.Println("API endpoints:")
		log.Println("  POST   /api/login")
		log.Println("  HEAD   /api/cache/:key")
		log.Println("  GET    /api/cache/:key")
		log.Println("  PUT    /api/cache/:key?ttl=SECONDS")
		log.Println("  DELETE /api/cache/:key")
		log.Println("  DELETE /api/cache")
		log.Println("  GET    /api/entries")
		log.Println("  GET    /api/stats")
		log.Println("  GET    /api/ws")
		log.Println("  GET    /health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
