package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"

	"companyhub/internal/cache"
	"companyhub/internal/company"
	companyhandler "companyhub/internal/company/handler"
	companymetrics "companyhub/internal/company/metrics"
	"companyhub/internal/events"
	"companyhub/internal/platform/config"
	"companyhub/internal/platform/httpserver"
	"companyhub/internal/platform/logger"
	platformredis "companyhub/internal/platform/redis"
	"companyhub/internal/providers"
	"companyhub/internal/providers/iban"
	"companyhub/internal/providers/mf"
	"companyhub/internal/providers/regon"
	httptransport "companyhub/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	health := make(map[string]httptransport.HealthCheck)

	cacheStore, companyStore, closeStores := buildStores(cfg, log, health)
	defer closeStores()

	publisher := buildPublisher(cfg, log)
	defer publisher.Close()

	chain := iban.NewChain(cfg.IBAN.CallTimeout, log,
		iban.NewIBANAPI(cfg.IBAN.IBANAPIURL, cfg.IBAN.IBANAPIKey, cfg.IBAN.CallTimeout),
		iban.NewOpenIBAN(cfg.IBAN.OpenIBANURL, cfg.IBAN.CallTimeout),
		iban.NewAPILayer(cfg.IBAN.APILayerURL, cfg.IBAN.APILayerKey, cfg.IBAN.CallTimeout),
	)
	enricher := iban.NewCachedChain(chain, cacheStore, cfg.EnrichmentTTL, log)

	registry := providers.NewRegistry(
		regon.New(regon.Config(cfg.Regon), log),
		mf.New(mf.Config{APIURL: cfg.MF.APIURL, Timeout: cfg.MF.Timeout}, enricher, log),
	)

	service := company.NewService(registry, cacheStore, companyStore,
		company.WithLogger(log),
		company.WithMetrics(companymetrics.New()),
		company.WithPublisher(publisher),
		company.WithTTL(regon.Source, cfg.RegonTTL),
		company.WithTTL(mf.Source, cfg.MFTTL),
	)

	router := httptransport.NewRouter(
		companyhandler.New(service, log),
		httptransport.RouterConfig{
			Logger:     log,
			InboundRPS: cfg.InboundRPS,
			Health:     health,
		},
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting companyhub", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildStores selects the cache and company stores from configuration:
// Redis cache when configured, else Postgres, else in-memory. The company
// store requires Postgres and degrades to memory without it.
func buildStores(cfg config.Config, log *slog.Logger, health map[string]httptransport.HealthCheck) (cache.Store, company.Store, func()) {
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var db *sql.DB
	if cfg.PostgresURL != "" {
		opened, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		db = opened
		closers = append(closers, func() { _ = db.Close() })
		health["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }

		for _, schema := range []string{cache.Schema, company.Schema} {
			if _, err := db.Exec(schema); err != nil {
				log.Error("schema apply failed", "error", err)
				os.Exit(1)
			}
		}
	}

	var cacheStore cache.Store
	switch {
	case cfg.Redis.URL != "":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connect failed", "error", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = client.Close() })
		health["redis"] = client.Health
		cacheStore = cache.NewRedis(client.Client)
		log.Info("cache store: redis")
	case db != nil:
		cacheStore = cache.NewPostgres(db)
		log.Info("cache store: postgres")
	default:
		cacheStore = cache.NewMemory()
		log.Warn("cache store: in-memory, data will not survive restarts")
	}

	var companyStore company.Store
	if db != nil {
		companyStore = company.NewPostgresStore(db)
	} else {
		companyStore = company.NewMemoryStore()
	}

	return cacheStore, companyStore, closeAll
}

func buildPublisher(cfg config.Config, log *slog.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewMemory()
	}
	publisher, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Error("kafka connect failed", "error", err)
		os.Exit(1)
	}
	log.Info("change events: kafka", "topic", cfg.Kafka.Topic)
	return publisher
}
