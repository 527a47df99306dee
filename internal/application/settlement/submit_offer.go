package settlement

import (
	"context"
	"fmt"

	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubmitOfferRequest holds the buyer's offer against a live listing.
type SubmitOfferRequest struct {
	CollectionID string
	AssetID      string
	BuyerID      string
	Bid          money.Amount
}

// SubmitOfferResponse reports the saga opened for an accepted offer.
type SubmitOfferResponse struct {
	SagaID uuid.UUID
	Phase  settlement.Phase
}

// SubmitOfferUseCase consumes a listing and opens a settlement saga for it.
type SubmitOfferUseCase struct {
	listingRepo listing.Repository
	log         settlement.CompensationLog
	gateway     ledger.Gateway
	txManager   TransactionManager
	logger      zerolog.Logger
}

// NewSubmitOfferUseCase creates a new SubmitOfferUseCase.
func NewSubmitOfferUseCase(
	listingRepo listing.Repository,
	log settlement.CompensationLog,
	gateway ledger.Gateway,
	txManager TransactionManager,
	logger zerolog.Logger,
) *SubmitOfferUseCase {
	return &SubmitOfferUseCase{
		listingRepo: listingRepo,
		log:         log,
		gateway:     gateway,
		txManager:   txManager,
		logger:      logger,
	}
}

// Execute removes the listing, validates the offer against the removed
// snapshot and durably opens the saga, all in one transaction. Only after the
// record is committed does it issue the payment-collection call: a crash
// between commit and issue leaves an initiated record the reconciler resumes.
//
// Any validation failure rolls the transaction back, which restores the
// listing untouched. Concurrent offers on the same listing race on the
// atomic remove; exactly one obtains the listing and the rest observe
// ErrListingNotFound.
func (uc *SubmitOfferUseCase) Execute(ctx context.Context, req SubmitOfferRequest) (*SubmitOfferResponse, error) {
	var attempt *settlement.SaleAttempt

	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		l, err := uc.listingRepo.RemoveIfExists(txCtx, req.CollectionID, req.AssetID)
		if err != nil {
			return err
		}

		attempt, err = settlement.NewSaleAttempt(*l, req.BuyerID, req.Bid)
		if err != nil {
			return err
		}

		return uc.log.Append(txCtx, attempt)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("saga_id", attempt.SagaID.String()).
		Str("collection_id", req.CollectionID).
		Str("asset_id", req.AssetID).
		Str("buyer_id", req.BuyerID).
		Str("agreed_price", attempt.AgreedPrice.String()).
		Msg("settlement saga opened")

	if err := uc.issuePayment(ctx, attempt); err != nil {
		// The saga is committed; the reconciler re-issues the payment call.
		uc.logger.Warn().Err(err).
			Str("saga_id", attempt.SagaID.String()).
			Msg("payment call not issued, left for reconciler")
	}

	return &SubmitOfferResponse{SagaID: attempt.SagaID, Phase: attempt.Phase}, nil
}

func (uc *SubmitOfferUseCase) issuePayment(ctx context.Context, attempt *settlement.SaleAttempt) error {
	callID, err := uc.gateway.RequestPayment(ctx, attempt.SagaID, attempt.BuyerID, attempt.AgreedPrice)
	if err != nil {
		return fmt.Errorf("request payment: %w", err)
	}
	if err := attempt.MarkPaymentRequested(callID); err != nil {
		return err
	}
	return uc.log.Update(ctx, attempt)
}
