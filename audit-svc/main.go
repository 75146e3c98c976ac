package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	httpapi "overcooked-storefront/audit-svc/internal/api/http"
	"overcooked-storefront/audit-svc/internal/service"
	"overcooked-storefront/audit-svc/internal/storage"
	"overcooked-storefront/config"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if cfg.KafkaBroker == "" {
		log.Fatal("KAFKA_BROKER environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := config.MustInitPostgres(cfg.DB)
	defer db.Close()

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to create schema:", err)
	}

	reader := config.NewKafkaReader(cfg.KafkaBroker, cfg.CheckoutEventsTopic, cfg.AuditGroupID)
	defer reader.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.NewConsumer(reader, repo).Start(ctx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.AuditPort,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(repo)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Audit Service starting on %s (topic %s)", srv.Addr, cfg.CheckoutEventsTopic)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Audit Service shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
	wg.Wait()
}
