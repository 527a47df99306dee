// Package listing contains the marketplace-surface use cases for managing
// offer-to-sell records.
package listing

import (
	"context"

	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/rs/zerolog"
)

// CreateListingRequest holds the input for listing an asset for sale.
type CreateListingRequest struct {
	CollectionID  string
	AssetID       string
	OwnerID       string
	Price         money.Amount
	ApprovalToken string
	Royalties     listing.RoyaltySpec
}

// CreateListingUseCase validates and persists new listings.
type CreateListingUseCase struct {
	repo   listing.Repository
	logger zerolog.Logger
}

// NewCreateListingUseCase creates a new CreateListingUseCase.
func NewCreateListingUseCase(repo listing.Repository, logger zerolog.Logger) *CreateListingUseCase {
	return &CreateListingUseCase{repo: repo, logger: logger}
}

// Execute creates the listing. The repository enforces the one-listing-per-
// asset key, so re-listing an already listed asset fails cleanly.
func (uc *CreateListingUseCase) Execute(ctx context.Context, req CreateListingRequest) (*listing.Listing, error) {
	l, err := listing.New(req.CollectionID, req.AssetID, req.OwnerID, req.Price, req.ApprovalToken, req.Royalties)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("collection_id", l.CollectionID).
		Str("asset_id", l.AssetID).
		Str("owner_id", l.OwnerID).
		Str("price", l.Price.String()).
		Msg("listing created")
	return l, nil
}

// GetListingUseCase serves read-only listing lookups.
type GetListingUseCase struct {
	repo listing.Repository
}

// NewGetListingUseCase creates a new GetListingUseCase.
func NewGetListingUseCase(repo listing.Repository) *GetListingUseCase {
	return &GetListingUseCase{repo: repo}
}

// Execute returns one listing by its key.
func (uc *GetListingUseCase) Execute(ctx context.Context, collectionID, assetID string) (*listing.Listing, error) {
	return uc.repo.Get(ctx, collectionID, assetID)
}

// List returns listings matching the filter.
func (uc *GetListingUseCase) List(ctx context.Context, f listing.ListFilter) ([]*listing.Listing, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return uc.repo.List(ctx, f)
}
