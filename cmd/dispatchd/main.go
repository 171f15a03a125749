package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/audit"
	"github.com/lusosms/dispatch-engine/internal/config"
	"github.com/lusosms/dispatch-engine/internal/dispatch"
	"github.com/lusosms/dispatch-engine/internal/gateway"
	"github.com/lusosms/dispatch-engine/internal/gateway/bulksms"
	"github.com/lusosms/dispatch-engine/internal/gateway/mimo"
	"github.com/lusosms/dispatch-engine/internal/logger"
	"github.com/lusosms/dispatch-engine/internal/models"
	"github.com/lusosms/dispatch-engine/internal/override"
	"github.com/lusosms/dispatch-engine/internal/repository"
	"github.com/lusosms/dispatch-engine/internal/sender"
	"github.com/lusosms/dispatch-engine/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log = log.With().Str("service", "dispatchd").Logger()

	providerTimeout := time.Duration(cfg.Dispatch.ProviderTimeoutSeconds) * time.Second

	bulksmsGw, err := bulksms.New(cfg.BulkSMS, log.With().Str("component", "bulksms").Logger(), bulksms.WithTimeout(providerTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise bulksms gateway")
	}
	mimoGw, err := mimo.New(cfg.Mimo, log.With().Str("component", "mimo").Logger(), mimo.WithTimeout(providerTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise mimo gateway")
	}

	gateways := gateway.Registry{
		bulksmsGw.ID(): bulksmsGw,
		mimoGw.ID():    mimoGw,
	}

	recorders := audit.Multi{audit.NewLogRecorder(log.With().Str("component", "audit").Logger())}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := audit.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect kafka producer")
		}
		kafkaPublisher, err := audit.NewKafkaPublisher(producer, cfg.Kafka.AuditTopic, log.With().Str("component", "kafka-audit").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka audit publisher")
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka audit publisher")
			}
		}()
		recorders = append(recorders, kafkaPublisher)
	}

	var ledger dispatch.CreditLedger = dispatch.NopLedger{}
	if cfg.Postgres.DSN != "" {
		db, err := repository.Open(cfg.Postgres.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close postgres pool")
			}
		}()
		recorders = append(recorders, repository.NewAttemptRepository(db))
		ledger = repository.NewCreditRepository(db)
	}

	overrideSource, cleanup, err := buildOverrideSource(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise override source")
	}
	if cleanup != nil {
		defer cleanup()
	}

	orchestrator, err := dispatch.New(
		dispatch.Config{DefaultSenderID: cfg.Dispatch.DefaultSenderID},
		dispatch.Dependencies{
			Gateways:      gateways,
			Resolver:      sender.NewStaticResolver(nil),
			Override:      overrideSource,
			AttemptLogger: recorders,
			Ledger:        ledger,
			Logger:        log,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise orchestrator")
	}

	srv, err := server.New(orchestrator, log, cfg.Dispatch.MaxInFlight)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise http server")
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Msg("dispatch engine started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func buildOverrideSource(cfg *config.Config, log zerolog.Logger) (override.Source, func(), error) {
	if cfg.Redis.Addr == "" {
		ov, err := models.ParseOverride(cfg.Dispatch.StaticOverride)
		if err != nil {
			return nil, nil, err
		}
		return override.Static(ov), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}
	return override.NewRedisSource(client, cfg.Redis.OverrideKey), cleanup, nil
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("dispatchd init failed")
}
