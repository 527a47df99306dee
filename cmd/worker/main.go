package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	"github.com/cassiomorais/marketsettle/internal/bootstrap"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	infraRedis "github.com/cassiomorais/marketsettle/internal/infrastructure/redis"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/cassiomorais/marketsettle/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "marketsettle-worker", "marketsettle_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories and gateway ---
	settlementRepo := postgres.NewSettlementRepository(app.Pool)
	producer := infraRedis.NewStreamProducer(app.Redis)
	gateway := ledger.NewStreamGateway(producer, ledger.FundFlow(app.Config.Settlement.FundFlow), ledger.BreakerSettings{
		Threshold: app.Config.Settlement.CircuitBreakerThreshold,
		Timeout:   app.Config.Settlement.CircuitBreakerTimeout,
	}, app.Metrics)

	// --- Use cases ---
	advanceUC := settlementApp.NewAdvanceSettlementUseCase(settlementRepo, gateway, app.Logger)
	reconcileUC := settlementApp.NewReconcileUseCase(
		settlementRepo,
		gateway,
		app.Config.Settlement.CallbackTimeout,
		app.Config.Settlement.SettledRetention,
		app.Logger,
	)

	// --- Callback stream consumer ---
	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.LedgerCallbackStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	app.Logger.Info().
		Str("stream", infraRedis.LedgerCallbackStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for ledger callbacks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Callback processor (reads ledger outcomes from Redis Streams).
	g.Go(func() error {
		return runCallbackProcessor(gCtx, app, consumer, producer, advanceUC, settlementRepo)
	})

	// 2. Reconciler (sweeps stalled sagas on a timer, single holder at a time).
	g.Go(func() error {
		return runReconciler(gCtx, app, reconcileUC)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runCallbackProcessor(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	producer *infraRedis.StreamProducer,
	advanceUC *settlementApp.AdvanceSettlementUseCase,
	settlementRepo *postgres.SettlementRepository,
) error {
	logger := app.Logger
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				handleCallback(ctx, app, consumer, producer, advanceUC, settlementRepo, logger, msg)
			}
		}
	}
}

func handleCallback(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	producer *infraRedis.StreamProducer,
	advanceUC *settlementApp.AdvanceSettlementUseCase,
	settlementRepo *postgres.SettlementRepository,
	logger zerolog.Logger,
	msg redis.XMessage,
) {
	cb, err := ledger.ParseCallback(msg)
	if err != nil {
		logger.Error().Err(err).Str("message_id", msg.ID).Msg("Unparseable callback, moving to DLQ")
		producer.PublishToDLQ(ctx, "", err.Error(), msg.Values)
		consumer.Ack(ctx, msg.ID)
		app.Metrics.WorkerMessagesProcessed.WithLabelValues("poison").Inc()
		return
	}

	start := time.Now()
	err = advanceUC.Execute(ctx, cb)
	app.Metrics.WorkerProcessingDuration.WithLabelValues(string(cb.Kind)).Observe(time.Since(start).Seconds())

	if cb.Kind == settlement.CallRefund {
		result := "confirmed"
		if !cb.OK {
			result = "rejected"
		}
		app.Metrics.RefundsTotal.WithLabelValues(result).Inc()
	}

	switch {
	case err == nil:
		app.Metrics.WorkerMessagesProcessed.WithLabelValues("success").Inc()
		consumer.Ack(ctx, msg.ID)
		recordTerminalOutcome(ctx, app, settlementRepo, cb)
	case errors.Is(err, domainErrors.ErrUnknownCall):
		logger.Warn().Str("saga_id", cb.SagaID.String()).Str("call_id", cb.CallID.String()).
			Msg("Callback does not match any saga, moving to DLQ")
		producer.PublishToDLQ(ctx, cb.SagaID.String(), err.Error(), msg.Values)
		consumer.Ack(ctx, msg.ID)
		app.Metrics.WorkerMessagesProcessed.WithLabelValues("unknown").Inc()
	default:
		// Transient failure. Leave the message pending so redelivery retries it.
		logger.Error().Err(err).Str("saga_id", cb.SagaID.String()).Msg("Failed to advance settlement")
		app.Metrics.WorkerMessagesProcessed.WithLabelValues("error").Inc()
	}
}

// recordTerminalOutcome updates the settlement outcome metrics once a saga
// reaches settled or failed.
func recordTerminalOutcome(ctx context.Context, app *bootstrap.App, settlementRepo *postgres.SettlementRepository, cb ledger.Callback) {
	attempt, err := settlementRepo.Get(ctx, cb.SagaID)
	if err != nil {
		return
	}
	switch attempt.Phase {
	case settlement.PhaseSettled:
		app.Metrics.SettlementsTotal.WithLabelValues("settled").Inc()
		app.Metrics.SettlementDuration.WithLabelValues("settled").Observe(attempt.UpdatedAt.Sub(attempt.CreatedAt).Seconds())
		app.Metrics.PayoutLegs.Observe(float64(len(attempt.Payout)))
	case settlement.PhaseFailed:
		app.Metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		app.Metrics.SettlementDuration.WithLabelValues("failed").Observe(attempt.UpdatedAt.Sub(attempt.CreatedAt).Seconds())
	}
}

func runReconciler(ctx context.Context, app *bootstrap.App, reconcileUC *settlementApp.ReconcileUseCase) error {
	logger := app.Logger
	cfg := app.Config.Settlement

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lock := infraRedis.NewDistributedLock(app.Redis, "settlement:reconcile", cfg.ReconcileLockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil || !acquired {
			// Another instance holds the sweep.
			continue
		}

		report, err := reconcileUC.Execute(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Reconcile sweep failed")
		} else {
			app.Metrics.RemediationBacklog.Set(float64(report.RemediationBacklog))
			if report.Examined > 0 || report.Released > 0 {
				logger.Info().
					Int("examined", report.Examined).
					Int("payments_issued", report.PaymentsIssued).
					Int("transfers_issued", report.TransfersIssued).
					Int("refunds_issued", report.RefundsIssued).
					Int("timed_out", report.TimedOut).
					Int("released", report.Released).
					Msg("Reconcile sweep complete")
			}
		}

		lock.Release(ctx)
	}
}
