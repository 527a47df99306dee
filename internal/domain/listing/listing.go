// Package listing holds the active offer-to-sell records for unique assets.
package listing

import (
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
)

// MaxRoyaltyRecipients bounds the royalty spec so the downstream
// transfer-with-payout call stays within the asset ledger's payload limit.
const MaxRoyaltyRecipients = 10

// RoyaltySpec maps a recipient account to its share of sale proceeds in
// basis points (10000 == 100%).
type RoyaltySpec map[string]uint32

// Validate checks structural constraints on a royalty spec. Aggregate shares
// above 100%, empty recipients, zero shares and oversized specs are rejected.
func (s RoyaltySpec) Validate() error {
	if len(s) > MaxRoyaltyRecipients {
		return domainErrors.NewDomainError(
			"royalty_spec_too_large",
			"royalty spec exceeds the maximum number of recipients",
			domainErrors.ErrInvalidRoyaltySpec,
		)
	}
	var totalBP uint64
	for recipient, bp := range s {
		if recipient == "" {
			return domainErrors.NewDomainError(
				"royalty_empty_recipient",
				"royalty recipient cannot be empty",
				domainErrors.ErrInvalidRoyaltySpec,
			)
		}
		if bp == 0 {
			return domainErrors.NewDomainError(
				"royalty_zero_share",
				"royalty share cannot be zero basis points",
				domainErrors.ErrInvalidRoyaltySpec,
			)
		}
		totalBP += uint64(bp)
	}
	if totalBP > money.BasisPointsDenominator {
		return domainErrors.NewDomainError(
			"royalty_over_100_percent",
			"royalty shares exceed 100% in aggregate",
			domainErrors.ErrInvalidRoyaltySpec,
		)
	}
	return nil
}

// Listing is an active offer-to-sell record for one unique asset at a fixed
// minimum price. At most one listing exists per (collection, asset) key; it
// is consumed exactly once, atomically, when an offer is accepted.
type Listing struct {
	CollectionID  string
	AssetID       string
	OwnerID       string
	Price         money.Amount
	ApprovalToken string
	Royalties     RoyaltySpec
	CreatedAt     time.Time
}

// New validates and builds a listing.
func New(collectionID, assetID, ownerID string, price money.Amount, approvalToken string, royalties RoyaltySpec) (*Listing, error) {
	if collectionID == "" {
		return nil, domainErrors.NewValidationError("collection_id", "cannot be empty")
	}
	if assetID == "" {
		return nil, domainErrors.NewValidationError("asset_id", "cannot be empty")
	}
	if ownerID == "" {
		return nil, domainErrors.NewValidationError("owner_id", "cannot be empty")
	}
	if price.IsZero() {
		return nil, domainErrors.ErrZeroAmount
	}
	if err := royalties.Validate(); err != nil {
		return nil, err
	}
	return &Listing{
		CollectionID:  collectionID,
		AssetID:       assetID,
		OwnerID:       ownerID,
		Price:         price,
		ApprovalToken: approvalToken,
		Royalties:     royalties,
		CreatedAt:     time.Now(),
	}, nil
}
