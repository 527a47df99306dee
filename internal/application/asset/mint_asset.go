// Package asset contains the factory use cases for minting and browsing
// land parcels.
package asset

import (
	"context"

	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/rs/zerolog"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MintAssetRequest holds the input for minting one parcel.
type MintAssetRequest struct {
	OwnerID         string
	X               string
	Y               string
	Metadata        asset.Metadata
	AttachedDeposit money.Amount
}

// MintAssetResponse reports the minted parcel and the deposit accounting.
type MintAssetResponse struct {
	Asset *asset.Asset
	// Surplus is the part of the attached deposit beyond fee and storage,
	// credited to the owner's storage balance.
	Surplus money.Amount
}

// MintAssetUseCase mints parcels against a flat creation fee plus a storage
// charge, both taken from the attached deposit.
type MintAssetUseCase struct {
	repo        asset.Repository
	txManager   TransactionManager
	creationFee money.Amount
	storageCost money.Amount
	logger      zerolog.Logger
}

// NewMintAssetUseCase creates a new MintAssetUseCase.
func NewMintAssetUseCase(
	repo asset.Repository,
	txManager TransactionManager,
	creationFee money.Amount,
	storageCost money.Amount,
	logger zerolog.Logger,
) *MintAssetUseCase {
	return &MintAssetUseCase{
		repo:        repo,
		txManager:   txManager,
		creationFee: creationFee,
		storageCost: storageCost,
		logger:      logger,
	}
}

// Execute mints the parcel. The attached deposit must cover the creation fee
// and the storage charge; any surplus is credited to the owner's storage
// balance rather than silently kept.
func (uc *MintAssetUseCase) Execute(ctx context.Context, req MintAssetRequest) (*MintAssetResponse, error) {
	required, err := uc.creationFee.Add(uc.storageCost)
	if err != nil {
		return nil, err
	}
	if req.AttachedDeposit.Less(required) {
		return nil, domainErrors.ErrDepositTooLow
	}
	surplus, err := req.AttachedDeposit.Sub(required)
	if err != nil {
		return nil, err
	}

	var minted *asset.Asset
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := uc.repo.NextSequence(txCtx)
		if err != nil {
			return err
		}
		minted, err = asset.New(req.OwnerID, req.X, req.Y, req.Metadata, seq)
		if err != nil {
			return err
		}
		if err := uc.repo.Create(txCtx, minted); err != nil {
			return err
		}
		if !surplus.IsZero() {
			return uc.repo.AddStorageDeposit(txCtx, req.OwnerID, surplus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("asset_id", minted.ID).
		Str("owner_id", minted.OwnerID).
		Str("position", minted.Position()).
		Msg("parcel minted")
	return &MintAssetResponse{Asset: minted, Surplus: surplus}, nil
}

// GetAssetUseCase serves read-only parcel lookups.
type GetAssetUseCase struct {
	repo asset.Repository
}

// NewGetAssetUseCase creates a new GetAssetUseCase.
func NewGetAssetUseCase(repo asset.Repository) *GetAssetUseCase {
	return &GetAssetUseCase{repo: repo}
}

// Execute returns one parcel by ID.
func (uc *GetAssetUseCase) Execute(ctx context.Context, id string) (*asset.Asset, error) {
	if !asset.IsValidID(id) {
		return nil, domainErrors.ErrInvalidAssetID
	}
	return uc.repo.Get(ctx, id)
}

// List returns parcels in mint order.
func (uc *GetAssetUseCase) List(ctx context.Context, limit, offset int) ([]*asset.Asset, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.repo.List(ctx, limit, offset)
}
