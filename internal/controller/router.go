package controller

import (
	"time"

	assetApp "github.com/cassiomorais/marketsettle/internal/application/asset"
	listingApp "github.com/cassiomorais/marketsettle/internal/application/listing"
	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	vestingApp "github.com/cassiomorais/marketsettle/internal/application/vesting"
	"github.com/cassiomorais/marketsettle/internal/infrastructure/config"
	"github.com/cassiomorais/marketsettle/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/marketsettle/internal/middleware"
	"github.com/cassiomorais/marketsettle/internal/repository/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	CreateListingUC *listingApp.CreateListingUseCase
	GetListingUC    *listingApp.GetListingUseCase
	SubmitOfferUC   *settlementApp.SubmitOfferUseCase
	GetSettlementUC *settlementApp.GetSettlementUseCase
	MintAssetUC     *assetApp.MintAssetUseCase
	GetAssetUC      *assetApp.GetAssetUseCase
	PurchaseUC      *vestingApp.PurchasePackageUseCase
	ClaimableUC     *vestingApp.GetClaimableUseCase
	ClaimUC         *vestingApp.ClaimUseCase
	IdempotencyRepo *postgres.IdempotencyRepository
	Metrics         *observability.Metrics
	CORSConfig      config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	listingH := NewListingController(deps.CreateListingUC, deps.GetListingUC, deps.SubmitOfferUC)
	settlementH := NewSettlementController(deps.GetSettlementUC)
	assetH := NewAssetController(deps.MintAssetUC, deps.GetAssetUC)
	packageH := NewPackageController(deps.PurchaseUC, deps.ClaimableUC, deps.ClaimUC)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating endpoints.
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		// Listings
		r.With(idempotencyMW).Post("/listings", listingH.Create)
		r.Get("/listings", listingH.List)
		r.Get("/listings/{collection}/{asset}", listingH.Get)

		// Offers open a settlement for a listed asset.
		r.With(idempotencyMW).Post("/offers", listingH.SubmitOffer)

		// Settlements
		r.Get("/settlements/{sagaId}", settlementH.Get)
		r.Get("/settlements", settlementH.List)

		// Assets
		r.With(idempotencyMW).Post("/assets", assetH.Mint)
		r.Get("/assets", assetH.List)
		r.Get("/assets/{id}", assetH.Get)

		// Token packages
		r.With(idempotencyMW).Post("/packages/purchase", packageH.Purchase)
		r.Get("/packages/{id}/claimable", packageH.Claimable)
		r.Post("/packages/{id}/claim", packageH.Claim)
	})

	return r
}
