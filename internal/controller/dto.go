package controller

import (
	"time"

	"github.com/cassiomorais/marketsettle/internal/application/vesting"
	"github.com/cassiomorais/marketsettle/internal/domain/asset"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	domainVesting "github.com/cassiomorais/marketsettle/internal/domain/vesting"
)

// --- Request DTOs ---
// Amounts travel as decimal strings: the payment token uses 128-bit minor
// units, which neither float64 nor int64 can carry.

// CreateListingRequest holds the input for listing an asset for sale.
type CreateListingRequest struct {
	CollectionID  string            `json:"collection_id" validate:"required"`
	AssetID       string            `json:"asset_id" validate:"required"`
	OwnerID       string            `json:"owner_id" validate:"required"`
	Price         string            `json:"price" validate:"required"`
	ApprovalToken string            `json:"approval_token,omitempty"`
	Royalties     map[string]uint32 `json:"royalties,omitempty" validate:"max=10,dive,gt=0"`
}

// SubmitOfferRequest holds a buyer's offer against a listing.
type SubmitOfferRequest struct {
	CollectionID string `json:"collection_id" validate:"required"`
	AssetID      string `json:"asset_id" validate:"required"`
	BuyerID      string `json:"buyer_id" validate:"required"`
	Bid          string `json:"bid" validate:"required"`
}

// MintAssetRequest holds the input for minting a parcel.
type MintAssetRequest struct {
	OwnerID         string `json:"owner_id" validate:"required"`
	X               string `json:"x" validate:"required"`
	Y               string `json:"y" validate:"required"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Media           string `json:"media,omitempty"`
	AttachedDeposit string `json:"attached_deposit" validate:"required"`
}

// PurchasePackageRequest holds the input for buying token packages.
type PurchasePackageRequest struct {
	BuyerID         string `json:"buyer_id" validate:"required"`
	Tier            uint8  `json:"tier" validate:"required,min=1,max=3"`
	Quantity        uint64 `json:"quantity"`
	AttachedPayment string `json:"attached_payment" validate:"required"`
}

// ClaimRequest holds the input for claiming vested tokens.
type ClaimRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// --- Response DTOs ---

// ListingResponse represents a listing in API responses.
type ListingResponse struct {
	CollectionID  string            `json:"collection_id"`
	AssetID       string            `json:"asset_id"`
	OwnerID       string            `json:"owner_id"`
	Price         string            `json:"price"`
	ApprovalToken string            `json:"approval_token,omitempty"`
	Royalties     map[string]uint32 `json:"royalties,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// OfferAcceptedResponse acknowledges an accepted offer with its saga handle.
type OfferAcceptedResponse struct {
	SagaID string `json:"saga_id"`
	Phase  string `json:"phase"`
}

// SettlementResponse represents a saga record in API responses.
type SettlementResponse struct {
	SagaID           string            `json:"saga_id"`
	CollectionID     string            `json:"collection_id"`
	AssetID          string            `json:"asset_id"`
	SellerID         string            `json:"seller_id"`
	BuyerID          string            `json:"buyer_id"`
	AgreedPrice      string            `json:"agreed_price"`
	Phase            string            `json:"phase"`
	Payout           map[string]string `json:"payout,omitempty"`
	PaymentCollected bool              `json:"payment_collected"`
	Refunded         bool              `json:"refunded"`
	LastError        *string           `json:"last_error,omitempty"`
	NeedsRemediation bool              `json:"needs_remediation"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// AssetResponse represents a minted parcel in API responses.
type AssetResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	X           string    `json:"x"`
	Y           string    `json:"y"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Media       string    `json:"media,omitempty"`
	Extra       string    `json:"extra,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MintResponse reports the minted parcel and the deposit surplus credited to
// the owner's storage balance.
type MintResponse struct {
	Asset   *AssetResponse `json:"asset"`
	Surplus string         `json:"surplus"`
}

// GrantResponse represents a package grant in API responses.
type GrantResponse struct {
	ID            string    `json:"id"`
	BuyerID       string    `json:"buyer_id"`
	Tier          uint8     `json:"tier"`
	Quantity      uint64    `json:"quantity"`
	TotalTokens   string    `json:"total_tokens"`
	ClaimedTokens string    `json:"claimed_tokens"`
	VestStart     time.Time `json:"vest_start"`
	VestDuration  string    `json:"vest_duration"`
	VestCliff     string    `json:"vest_cliff"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClaimableResponse reports a grant's vested and claimable balances.
type ClaimableResponse struct {
	Grant     *GrantResponse `json:"grant"`
	Vested    string         `json:"vested"`
	Claimable string         `json:"claimable"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromListing converts a domain listing to API response.
func FromListing(l *listing.Listing) *ListingResponse {
	return &ListingResponse{
		CollectionID:  l.CollectionID,
		AssetID:       l.AssetID,
		OwnerID:       l.OwnerID,
		Price:         l.Price.String(),
		ApprovalToken: l.ApprovalToken,
		Royalties:     l.Royalties,
		CreatedAt:     l.CreatedAt,
	}
}

// FromSaleAttempt converts a saga record to API response.
func FromSaleAttempt(s *settlement.SaleAttempt) *SettlementResponse {
	resp := &SettlementResponse{
		SagaID:           s.SagaID.String(),
		CollectionID:     s.Listing.CollectionID,
		AssetID:          s.Listing.AssetID,
		SellerID:         s.Listing.OwnerID,
		BuyerID:          s.BuyerID,
		AgreedPrice:      s.AgreedPrice.String(),
		Phase:            string(s.Phase),
		PaymentCollected: s.PaymentCollected,
		Refunded:         s.Refunded,
		LastError:        s.LastError,
		NeedsRemediation: s.NeedsRemediation(),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if len(s.Payout) > 0 {
		resp.Payout = make(map[string]string, len(s.Payout))
		for recipient, amount := range s.Payout {
			resp.Payout[recipient] = amount.String()
		}
	}
	return resp
}

// FromAsset converts a domain parcel to API response.
func FromAsset(a *asset.Asset) *AssetResponse {
	return &AssetResponse{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		X:           a.X,
		Y:           a.Y,
		Title:       a.Metadata.Title,
		Description: a.Metadata.Description,
		Media:       a.Metadata.Media,
		Extra:       a.Metadata.Extra,
		CreatedAt:   a.CreatedAt,
	}
}

// FromGrant converts a domain grant to API response.
func FromGrant(g *domainVesting.Grant) *GrantResponse {
	return &GrantResponse{
		ID:            g.ID.String(),
		BuyerID:       g.BuyerID,
		Tier:          g.Tier,
		Quantity:      g.Quantity,
		TotalTokens:   g.Schedule.Total.String(),
		ClaimedTokens: g.Schedule.Claimed.String(),
		VestStart:     g.Schedule.Start,
		VestDuration:  g.Schedule.Duration.String(),
		VestCliff:     g.Schedule.Cliff.String(),
		Active:        g.Schedule.Active,
		CreatedAt:     g.CreatedAt,
	}
}

// FromClaimable converts a claimable query result to API response.
func FromClaimable(c *vesting.ClaimableResponse) *ClaimableResponse {
	return &ClaimableResponse{
		Grant:     FromGrant(c.Grant),
		Vested:    c.Vested.String(),
		Claimable: c.Claimable.String(),
	}
}
