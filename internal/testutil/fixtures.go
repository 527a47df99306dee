package testutil

import (
	"time"

	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
)

func NewTestListing(collectionID, assetID, ownerID string, price uint64, royalties listing.RoyaltySpec) *listing.Listing {
	return &listing.Listing{
		CollectionID:  collectionID,
		AssetID:       assetID,
		OwnerID:       ownerID,
		Price:         money.FromUint64(price),
		ApprovalToken: "approval-" + assetID,
		Royalties:     royalties,
		CreatedAt:     time.Now(),
	}
}

func NewTestSaleAttempt(l *listing.Listing, buyerID string, bid uint64) *settlement.SaleAttempt {
	attempt, err := settlement.NewSaleAttempt(*l, buyerID, money.FromUint64(bid))
	if err != nil {
		panic(err)
	}
	return attempt
}

// BackdateAttempt pushes the last transition into the past so timeout sweeps
// pick the record up.
func BackdateAttempt(s *settlement.SaleAttempt, age time.Duration) {
	s.UpdatedAt = time.Now().Add(-age)
}
