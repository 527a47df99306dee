package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	assetApp "github.com/cassiomorais/marketsettle/internal/application/asset"
	listingApp "github.com/cassiomorais/marketsettle/internal/application/listing"
	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	vestingApp "github.com/cassiomorais/marketsettle/internal/application/vesting"
	"github.com/cassiomorais/marketsettle/internal/bootstrap"
	"github.com/cassiomorais/marketsettle/internal/controller"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	infraRedis "github.com/cassiomorais/marketsettle/internal/infrastructure/redis"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/cassiomorais/marketsettle/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "marketsettle-api", "marketsettle")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	creationFee, err := money.Parse(app.Config.Factory.CreationFee)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid factory.creation_fee")
	}
	storageCost, err := money.Parse(app.Config.Factory.StorageCost)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid factory.storage_cost")
	}

	// --- Repositories ---
	listingRepo := postgres.NewListingRepository(app.Pool)
	settlementRepo := postgres.NewSettlementRepository(app.Pool)
	assetRepo := postgres.NewAssetRepository(app.Pool)
	grantRepo := postgres.NewGrantRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Ledger gateway ---
	producer := infraRedis.NewStreamProducer(app.Redis)
	gateway := ledger.NewStreamGateway(producer, ledger.FundFlow(app.Config.Settlement.FundFlow), ledger.BreakerSettings{
		Threshold: app.Config.Settlement.CircuitBreakerThreshold,
		Timeout:   app.Config.Settlement.CircuitBreakerTimeout,
	}, app.Metrics)

	// --- Use cases ---
	createListingUC := listingApp.NewCreateListingUseCase(listingRepo, app.Logger)
	getListingUC := listingApp.NewGetListingUseCase(listingRepo)
	submitOfferUC := settlementApp.NewSubmitOfferUseCase(listingRepo, settlementRepo, gateway, txManager, app.Logger)
	getSettlementUC := settlementApp.NewGetSettlementUseCase(settlementRepo)
	mintAssetUC := assetApp.NewMintAssetUseCase(assetRepo, txManager, creationFee, storageCost, app.Logger)
	getAssetUC := assetApp.NewGetAssetUseCase(assetRepo)
	purchaseUC := vestingApp.NewPurchasePackageUseCase(grantRepo, app.Config.Vesting.Duration, app.Config.Vesting.Cliff, app.Logger)
	claimableUC := vestingApp.NewGetClaimableUseCase(grantRepo)
	claimUC := vestingApp.NewClaimUseCase(grantRepo, app.Logger)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		CreateListingUC: createListingUC,
		GetListingUC:    getListingUC,
		SubmitOfferUC:   submitOfferUC,
		GetSettlementUC: getSettlementUC,
		MintAssetUC:     mintAssetUC,
		GetAssetUC:      getAssetUC,
		PurchaseUC:      purchaseUC,
		ClaimableUC:     claimableUC,
		ClaimUC:         claimUC,
		IdempotencyRepo: idempotencyRepo,
		Metrics:         app.Metrics,
		CORSConfig:      app.Config.Server.CORS,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
