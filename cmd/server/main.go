package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"greencredits/internal/certificate/store"
	"greencredits/internal/content"
	"greencredits/internal/ingest"
	ingesthandler "greencredits/internal/ingest/handler"
	"greencredits/internal/marketplace"
	markethandler "greencredits/internal/marketplace/handler"
	"greencredits/internal/platform/config"
	"greencredits/internal/platform/httpserver"
	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/logger"
	"greencredits/internal/platform/metrics"
	redisplatform "greencredits/internal/platform/redis"
	httptransport "greencredits/internal/transport/http"
	"greencredits/internal/user"
	userhandler "greencredits/internal/user/handler"
	"greencredits/internal/verify"
	verifyhandler "greencredits/internal/verify/handler"
	"greencredits/internal/verify/verifier"
)

// main wires dependencies and keeps the server lifecycle small. Every
// collaborator is passed explicitly: no package holds a global store handle.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()
	m := metrics.New()

	var checks []httptransport.HealthCheck

	// Certificate and user stores: postgres when configured, in-memory for
	// development.
	var certs store.Store
	var users user.Store
	if cfg.PostgresURL != "" {
		pool, err := store.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("connect postgres", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()

		certStore := store.NewPostgres(pool)
		userStore := user.NewPostgres(pool)
		if err := certStore.EnsureSchema(ctx); err != nil {
			log.Error("migrate certificates", "error", err.Error())
			os.Exit(1)
		}
		if err := userStore.EnsureSchema(ctx); err != nil {
			log.Error("migrate users", "error", err.Error())
			os.Exit(1)
		}
		certs, users = certStore, userStore
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: pool.Ping})
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		certs, users = store.NewInMemoryStore(), user.NewInMemoryStore()
	}

	// Content store: GCS bucket when configured, local disk otherwise.
	var blobs content.Store
	if cfg.GCSBucket != "" {
		gcs, err := content.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Error("open gcs bucket", "error", err.Error())
			os.Exit(1)
		}
		blobs = gcs
	} else {
		disk, err := content.NewDiskStore(cfg.UploadDir)
		if err != nil {
			log.Error("open upload dir", "error", err.Error())
			os.Exit(1)
		}
		blobs = disk
	}

	// Verification lock: redis serializes across processes when configured;
	// the per-key mutex covers the single-process case.
	var locker verify.Locker = verify.NewMutexLocker()
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lockTTL := cfg.VerifierTimeout*time.Duration(cfg.VerifierRetries+1) + 30*time.Second
		locker = verify.NewRedisLocker(redisClient.Client, lockTTL)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	}

	// Lifecycle events: best effort, dropped entirely when Kafka is absent.
	var events kafka.Publisher = kafka.NopPublisher{}
	producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("connect kafka", "error", err.Error())
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		events = producer
	}

	verifierClient := verifier.NewClient(cfg.VerifierURL, cfg.VerifierTimeout, cfg.VerifierRetries)

	ingestService := ingest.NewService(certs, blobs, log, m, events)
	verifyService := verify.NewService(certs, blobs, verifierClient, locker, log, m, events)
	marketService := marketplace.NewService(certs, log, m, events)
	userService := user.NewService(users, cfg.JWTSigningKey, log)

	router := httptransport.NewRouter(log, checks,
		ingesthandler.New(ingestService, log, m),
		verifyhandler.New(verifyService, log, m),
		markethandler.New(marketService, log, m),
		userhandler.New(userService, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting greencredits backend", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
