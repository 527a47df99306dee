// Package vesting contains the use cases for buying token packages and
// querying their vesting schedules.
package vesting

import (
	"context"
	"time"

	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/vesting"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PurchasePackageRequest holds the input for buying token packages.
type PurchasePackageRequest struct {
	BuyerID         string
	Tier            uint8
	Quantity        uint64
	AttachedPayment money.Amount
}

// PurchasePackageUseCase prices a package purchase and opens its vesting
// grant. The attached payment must match the quoted total exactly; there is
// no partial fill or change-making here.
type PurchasePackageUseCase struct {
	repo     vesting.Repository
	duration time.Duration
	cliff    time.Duration
	logger   zerolog.Logger
}

// NewPurchasePackageUseCase creates a new PurchasePackageUseCase. duration
// and cliff apply to every grant opened through it.
func NewPurchasePackageUseCase(repo vesting.Repository, duration, cliff time.Duration, logger zerolog.Logger) *PurchasePackageUseCase {
	return &PurchasePackageUseCase{repo: repo, duration: duration, cliff: cliff, logger: logger}
}

// Execute quotes the purchase and persists the grant.
func (uc *PurchasePackageUseCase) Execute(ctx context.Context, req PurchasePackageRequest) (*vesting.Grant, error) {
	quote, err := vesting.QuotePurchase(req.Tier, req.Quantity, req.AttachedPayment)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	schedule, err := vesting.NewSchedule(quote.TotalTokens, now, uc.duration, uc.cliff)
	if err != nil {
		return nil, err
	}

	grant := &vesting.Grant{
		ID:        uuid.New(),
		BuyerID:   req.BuyerID,
		Tier:      quote.Tier,
		Quantity:  quote.Quantity,
		Schedule:  *schedule,
		CreatedAt: now,
	}
	if err := uc.repo.Create(ctx, grant); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("grant_id", grant.ID.String()).
		Str("buyer_id", grant.BuyerID).
		Uint8("tier", grant.Tier).
		Uint64("quantity", grant.Quantity).
		Str("total_tokens", grant.Schedule.Total.String()).
		Msg("package purchased")
	return grant, nil
}

// ClaimableResponse reports the state of one grant's schedule.
type ClaimableResponse struct {
	Grant     *vesting.Grant
	Vested    money.Amount
	Claimable money.Amount
}

// GetClaimableUseCase answers how much of a grant has vested and can still be
// claimed.
type GetClaimableUseCase struct {
	repo vesting.Repository
}

// NewGetClaimableUseCase creates a new GetClaimableUseCase.
func NewGetClaimableUseCase(repo vesting.Repository) *GetClaimableUseCase {
	return &GetClaimableUseCase{repo: repo}
}

// Execute returns the grant with its vested and claimable amounts as of the
// given instant. A zero instant means now.
func (uc *GetClaimableUseCase) Execute(ctx context.Context, grantID uuid.UUID, at time.Time) (*ClaimableResponse, error) {
	grant, err := uc.repo.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	return &ClaimableResponse{
		Grant:     grant,
		Vested:    grant.Schedule.VestedAt(at),
		Claimable: grant.Schedule.ClaimableAt(at),
	}, nil
}

// ClaimUseCase withdraws vested tokens from a grant.
type ClaimUseCase struct {
	repo   vesting.Repository
	logger zerolog.Logger
}

// NewClaimUseCase creates a new ClaimUseCase.
func NewClaimUseCase(repo vesting.Repository, logger zerolog.Logger) *ClaimUseCase {
	return &ClaimUseCase{repo: repo, logger: logger}
}

// Execute claims amount from the grant's vested balance.
func (uc *ClaimUseCase) Execute(ctx context.Context, grantID uuid.UUID, amount money.Amount) (*vesting.Grant, error) {
	grant, err := uc.repo.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := grant.Schedule.Claim(amount, time.Now()); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, grant); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("grant_id", grant.ID.String()).
		Str("amount", amount.String()).
		Msg("vested tokens claimed")
	return grant, nil
}
