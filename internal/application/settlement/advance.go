package settlement

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/rs/zerolog"
)

// AdvanceSettlementUseCase applies one ledger callback to its saga. Callbacks
// are delivered at least once and possibly out of order; the saga's phase and
// the callback's correlation token decide whether a delivery means anything.
type AdvanceSettlementUseCase struct {
	log     settlement.CompensationLog
	gateway ledger.Gateway
	logger  zerolog.Logger
}

// NewAdvanceSettlementUseCase creates a new AdvanceSettlementUseCase.
func NewAdvanceSettlementUseCase(
	log settlement.CompensationLog,
	gateway ledger.Gateway,
	logger zerolog.Logger,
) *AdvanceSettlementUseCase {
	return &AdvanceSettlementUseCase{log: log, gateway: gateway, logger: logger}
}

// maxAdvanceAttempts bounds the re-reads when a compensation-log write loses
// a version race against the reconciler.
const maxAdvanceAttempts = 3

// Execute advances the saga addressed by the callback. Duplicate and stale
// deliveries return nil without touching the record, so redelivery is always
// safe to acknowledge. A write that loses a version race against another
// writer is retried from a fresh read, where the idempotency checks decide
// whether the callback still means anything.
func (uc *AdvanceSettlementUseCase) Execute(ctx context.Context, cb ledger.Callback) error {
	var err error
	for i := 0; i < maxAdvanceAttempts; i++ {
		if err = uc.apply(ctx, cb); !errors.Is(err, domainErrors.ErrStaleRecord) {
			return err
		}
		uc.logger.Debug().
			Str("saga_id", cb.SagaID.String()).
			Str("call_id", cb.CallID.String()).
			Msg("saga changed underneath callback, re-reading")
	}
	return err
}

func (uc *AdvanceSettlementUseCase) apply(ctx context.Context, cb ledger.Callback) error {
	attempt, err := uc.load(ctx, cb)
	if err != nil {
		return err
	}

	if attempt.IsTerminal() {
		// Late or redelivered callback for a finished saga.
		return nil
	}

	outstandingID, outstandingKind, ok := attempt.OutstandingCall()
	if !ok || outstandingID != cb.CallID || outstandingKind != cb.Kind {
		uc.logger.Debug().
			Str("saga_id", attempt.SagaID.String()).
			Str("call_id", cb.CallID.String()).
			Str("phase", string(attempt.Phase)).
			Msg("callback does not match outstanding call, ignoring")
		return nil
	}

	switch cb.Kind {
	case settlement.CallPayment:
		return uc.onPayment(ctx, attempt, cb)
	case settlement.CallAssetTransfer:
		return uc.onAssetTransfer(ctx, attempt, cb)
	case settlement.CallRefund:
		return uc.onRefund(ctx, attempt, cb)
	default:
		return fmt.Errorf("%w: %q", domainErrors.ErrUnknownCall, cb.Kind)
	}
}

func (uc *AdvanceSettlementUseCase) load(ctx context.Context, cb ledger.Callback) (*settlement.SaleAttempt, error) {
	attempt, err := uc.log.Get(ctx, cb.SagaID)
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, domainErrors.ErrSagaNotFound) {
		return nil, err
	}
	// Released settled records are gone; fall back to the correlation token so
	// the caller can tell an already-released saga from a bogus callback.
	if attempt, err = uc.log.GetByCallID(ctx, cb.CallID); err != nil {
		if errors.Is(err, domainErrors.ErrSagaNotFound) {
			return nil, fmt.Errorf("%w: call %s", domainErrors.ErrUnknownCall, cb.CallID)
		}
		return nil, err
	}
	return attempt, nil
}

func (uc *AdvanceSettlementUseCase) onPayment(ctx context.Context, attempt *settlement.SaleAttempt, cb ledger.Callback) error {
	if !cb.OK {
		// Nothing was collected, so failing here needs no compensation.
		if err := attempt.MarkFailed(failureReason(cb, "payment rejected"), false); err != nil {
			return err
		}
		if err := uc.log.Update(ctx, attempt); err != nil {
			return err
		}
		uc.logger.Info().
			Str("saga_id", attempt.SagaID.String()).
			Str("reason", cb.Reason).
			Msg("settlement failed before payment")
		return nil
	}

	if !cb.Amount.IsZero() && !cb.Amount.Equal(attempt.AgreedPrice) {
		// The payment ledger confirmed collecting a different amount than the
		// agreed price. Distributing the agreed price would break conservation
		// between what was taken and what goes out, so whatever was collected
		// goes back instead.
		if err := attempt.MarkPaymentConfirmed(settlement.PayoutMap{}); err != nil {
			return err
		}
		if err := uc.log.Update(ctx, attempt); err != nil {
			return err
		}
		return uc.beginRefund(ctx, attempt, fmt.Sprintf(
			"confirmed amount %s does not match agreed price %s", cb.Amount, attempt.AgreedPrice))
	}

	payout, err := settlement.ComputePayout(attempt.AgreedPrice, attempt.Listing.Royalties, attempt.Listing.OwnerID)
	if err != nil {
		// The royalty spec was validated at listing time; failing here means
		// the stored spec is corrupt. Funds are held, so compensate.
		if markErr := attempt.MarkPaymentConfirmed(settlement.PayoutMap{}); markErr != nil {
			return markErr
		}
		if updErr := uc.log.Update(ctx, attempt); updErr != nil {
			return updErr
		}
		return uc.beginRefund(ctx, attempt, fmt.Sprintf("payout computation: %v", err))
	}

	if err := attempt.MarkPaymentConfirmed(payout); err != nil {
		return err
	}
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}

	if err := uc.issueTransfer(ctx, attempt); err != nil {
		uc.logger.Warn().Err(err).
			Str("saga_id", attempt.SagaID.String()).
			Msg("asset transfer call not issued, left for reconciler")
	}
	return nil
}

func (uc *AdvanceSettlementUseCase) onAssetTransfer(ctx context.Context, attempt *settlement.SaleAttempt, cb ledger.Callback) error {
	if !cb.OK {
		return uc.beginRefund(ctx, attempt, failureReason(cb, "asset transfer rejected"))
	}

	if err := attempt.MarkSettled(); err != nil {
		return err
	}
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}
	uc.logger.Info().
		Str("saga_id", attempt.SagaID.String()).
		Str("asset_id", attempt.Listing.AssetID).
		Str("buyer_id", attempt.BuyerID).
		Int("payout_legs", len(attempt.Payout)).
		Msg("settlement completed")
	return nil
}

func (uc *AdvanceSettlementUseCase) onRefund(ctx context.Context, attempt *settlement.SaleAttempt, cb ledger.Callback) error {
	if !cb.OK {
		// Stay in the refund phase; the reconciler re-issues the call until
		// the payment ledger accepts it.
		uc.logger.Error().
			Str("saga_id", attempt.SagaID.String()).
			Str("reason", cb.Reason).
			Msg("refund rejected, will retry")
		return nil
	}

	reason := "refunded"
	if attempt.LastError != nil {
		reason = *attempt.LastError
	}
	if err := attempt.MarkFailed(reason, true); err != nil {
		return err
	}
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}
	uc.logger.Info().
		Str("saga_id", attempt.SagaID.String()).
		Msg("settlement failed, buyer refunded")
	return nil
}

// beginRefund moves the saga into the compensation branch and issues the
// refund call. The phase transition is persisted before the call so a publish
// failure still leaves the saga visibly owed a refund.
func (uc *AdvanceSettlementUseCase) beginRefund(ctx context.Context, attempt *settlement.SaleAttempt, reason string) error {
	if err := attempt.MarkRefundRequested(reason); err != nil {
		return err
	}
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}

	callID, err := uc.gateway.RequestRefund(ctx, attempt.SagaID, attempt.BuyerID, attempt.AgreedPrice)
	if err != nil {
		uc.logger.Warn().Err(err).
			Str("saga_id", attempt.SagaID.String()).
			Msg("refund call not issued, left for reconciler")
		return nil
	}
	attempt.AttachRefundCall(callID)
	return uc.log.Update(ctx, attempt)
}

func (uc *AdvanceSettlementUseCase) issueTransfer(ctx context.Context, attempt *settlement.SaleAttempt) error {
	asset := ledger.AssetRef{
		CollectionID:  attempt.Listing.CollectionID,
		AssetID:       attempt.Listing.AssetID,
		ApprovalToken: attempt.Listing.ApprovalToken,
	}
	memo := fmt.Sprintf("sale of %s/%s to %s", asset.CollectionID, asset.AssetID, attempt.BuyerID)

	callID, err := uc.gateway.RequestAssetTransfer(ctx, attempt.SagaID, asset, attempt.BuyerID, attempt.Payout, memo)
	if err != nil {
		return fmt.Errorf("request asset transfer: %w", err)
	}
	if err := attempt.MarkAssetTransferRequested(callID); err != nil {
		return err
	}
	return uc.log.Update(ctx, attempt)
}

func failureReason(cb ledger.Callback, fallback string) string {
	if cb.Reason != "" {
		return cb.Reason
	}
	return fallback
}
