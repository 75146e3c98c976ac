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

	"overcooked-storefront/config"
	httpapi "overcooked-storefront/storefront-svc/internal/api/http"
	"overcooked-storefront/storefront-svc/internal/backend"
	"overcooked-storefront/storefront-svc/internal/payment"
	"overcooked-storefront/storefront-svc/internal/service"
	"overcooked-storefront/storefront-svc/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	config.LoadEnv()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := service.Options{
		Payment: payment.Config{
			PollInterval:  cfg.PollInterval,
			MaxAttempts:   cfg.PollAttempts,
			RedirectDelay: cfg.RedirectDelay,
		},
		Currency: cfg.Currency,
		Events:   storage.NoopPublisher{},
	}

	if cfg.RedisAddr != "" {
		rdb := config.MustInitRedis(cfg.RedisAddr)
		defer rdb.Close()
		opts.Guard = storage.NewSubmissionGuard(rdb, cfg.SubmitGuardTTL)
	} else {
		log.Printf("Warning: REDIS_HOST not set, duplicate checkout suppression is per-process only")
	}

	if cfg.KafkaBroker != "" {
		writer := config.NewKafkaWriter(cfg.KafkaBroker, cfg.CheckoutEventsTopic)
		defer writer.Close()
		opts.Events = storage.NewKafkaPublisher(writer)
	} else {
		log.Printf("Warning: KAFKA_BROKER not set, checkout events are not published")
	}

	client := backend.New(cfg.BackendURL, &http.Client{Timeout: 15 * time.Second})
	sessions := service.NewStore(func(cookie func() string) service.Backend {
		return client.WithCookieFunc(cookie)
	}, opts)
	defer sessions.Close()

	go sweep(ctx, sessions, cfg.SessionMaxIdle)

	h := httpapi.NewHandler(sessions, service.ReceiptQR{PublicURL: cfg.PublicURL})
	h.Secure = cfg.SecureCookies
	if cfg.AuditURL != "" {
		h.Audit = httpapi.NewAuditProxy(cfg.AuditURL, &http.Client{Timeout: 10 * time.Second})
	}
	srv := httpapi.NewServer(":"+cfg.Port, httpapi.NewRouter(h, cfg.AllowedOrigins))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Storefront Service starting on %s (backend %s)", srv.Addr, cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Storefront Service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweep closes idle sessions so their payment polls do not outlive them.
func sweep(ctx context.Context, sessions *service.Store, maxIdle time.Duration) {
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep(maxIdle)
		}
	}
}
