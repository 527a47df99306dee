package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/rs/zerolog"
)

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	Examined           int
	PaymentsIssued     int
	TransfersIssued    int
	RefundsIssued      int
	TimedOut           int
	Released           int
	RemediationBacklog int
}

// ReconcileUseCase sweeps the compensation log for sagas whose expected
// callback never arrived and resumes them: silence past the timeout is
// treated as failure of the outstanding call. It also re-issues calls whose
// publication failed and releases settled records past their retention.
//
// The sweep must not run concurrently with itself; the worker serializes it
// under a distributed lock.
type ReconcileUseCase struct {
	log       settlement.CompensationLog
	gateway   ledger.Gateway
	timeout   time.Duration
	retention time.Duration
	logger    zerolog.Logger
}

// NewReconcileUseCase creates a new ReconcileUseCase. timeout is how long a
// saga may sit on an outstanding call before silence counts as failure;
// retention is how long settled records stay queryable before release.
func NewReconcileUseCase(
	log settlement.CompensationLog,
	gateway ledger.Gateway,
	timeout time.Duration,
	retention time.Duration,
	logger zerolog.Logger,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		log:       log,
		gateway:   gateway,
		timeout:   timeout,
		retention: retention,
		logger:    logger,
	}
}

// Execute runs one sweep over the log.
func (uc *ReconcileUseCase) Execute(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	pending, err := uc.log.ListPending(ctx, time.Now().Add(-uc.timeout))
	if err != nil {
		return nil, fmt.Errorf("list pending sagas: %w", err)
	}
	report.Examined = len(pending)

	for _, attempt := range pending {
		if err := uc.resume(ctx, attempt, report); err != nil {
			if errors.Is(err, domainErrors.ErrStaleRecord) {
				// A callback landed between the listing read and our write; the
				// callback's transition wins and the next sweep re-examines.
				uc.logger.Debug().
					Str("saga_id", attempt.SagaID.String()).
					Str("phase", string(attempt.Phase)).
					Msg("saga advanced during sweep, skipping")
				continue
			}
			// One stuck saga must not block the rest of the sweep.
			uc.logger.Error().Err(err).
				Str("saga_id", attempt.SagaID.String()).
				Str("phase", string(attempt.Phase)).
				Msg("failed to resume saga")
		}
	}

	if err := uc.releaseSettled(ctx, report); err != nil {
		uc.logger.Error().Err(err).Msg("failed to release settled sagas")
	}
	if err := uc.countRemediation(ctx, report); err != nil {
		uc.logger.Error().Err(err).Msg("failed to count remediation backlog")
	}

	return report, nil
}

func (uc *ReconcileUseCase) resume(ctx context.Context, attempt *settlement.SaleAttempt, report *ReconcileReport) error {
	switch attempt.Phase {
	case settlement.PhaseInitiated:
		// Committed, but the payment call was never issued.
		return uc.issuePayment(ctx, attempt, report)

	case settlement.PhasePaymentRequested:
		// No funds were confirmed collected, so timing out here is a plain
		// failure with nothing to compensate.
		if err := attempt.MarkFailed("payment callback timed out", false); err != nil {
			return err
		}
		if err := uc.log.Update(ctx, attempt); err != nil {
			return err
		}
		report.TimedOut++
		return nil

	case settlement.PhasePaymentConfirmed:
		// The transfer call was never issued.
		return uc.issueTransfer(ctx, attempt, report)

	case settlement.PhaseAssetTransferRequested:
		// Funds are held and the asset ledger went silent; compensate.
		if err := attempt.MarkRefundRequested("asset transfer callback timed out"); err != nil {
			return err
		}
		if err := uc.log.Update(ctx, attempt); err != nil {
			return err
		}
		report.TimedOut++
		return uc.issueRefund(ctx, attempt, report)

	case settlement.PhasePaymentRefundRequested:
		// Either the refund call was never issued or its callback is missing;
		// refunds are idempotent on the ledger side, so re-issue.
		return uc.issueRefund(ctx, attempt, report)

	default:
		return nil
	}
}

func (uc *ReconcileUseCase) issuePayment(ctx context.Context, attempt *settlement.SaleAttempt, report *ReconcileReport) error {
	callID, err := uc.gateway.RequestPayment(ctx, attempt.SagaID, attempt.BuyerID, attempt.AgreedPrice)
	if err != nil {
		return fmt.Errorf("request payment: %w", err)
	}
	if err := attempt.MarkPaymentRequested(callID); err != nil {
		return err
	}
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}
	report.PaymentsIssued++
	return nil
}

func (uc *ReconcileUseCase) issueTransfer(ctx context.Context, attempt *settlement.SaleAttempt, report *ReconcileReport) error {
	if len(attempt.Payout) == 0 {
		payout, err := settlement.ComputePayout(attempt.AgreedPrice, attempt.Listing.Royalties, attempt.Listing.OwnerID)
		if err != nil {
			if markErr := attempt.MarkRefundRequested(fmt.Sprintf("payout computation: %v", err)); markErr != nil {
				return markErr
			}
			if updErr := uc.log.Update(ctx, attempt); updErr != nil {
				return updErr
			}
			return uc.issueRefund(ctx, attempt, report)
		}
		attempt.Payout = payout
	}

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
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}
	report.TransfersIssued++
	return nil
}

func (uc *ReconcileUseCase) issueRefund(ctx context.Context, attempt *settlement.SaleAttempt, report *ReconcileReport) error {
	callID, err := uc.gateway.RequestRefund(ctx, attempt.SagaID, attempt.BuyerID, attempt.AgreedPrice)
	if err != nil {
		return fmt.Errorf("request refund: %w", err)
	}
	attempt.AttachRefundCall(callID)
	if err := uc.log.Update(ctx, attempt); err != nil {
		return err
	}
	report.RefundsIssued++
	return nil
}

func (uc *ReconcileUseCase) releaseSettled(ctx context.Context, report *ReconcileReport) error {
	phase := settlement.PhaseSettled
	settled, err := uc.log.List(ctx, settlement.ListFilter{Phase: &phase})
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-uc.retention)
	for _, attempt := range settled {
		if attempt.UpdatedAt.After(cutoff) {
			continue
		}
		if err := uc.log.Release(ctx, attempt.SagaID); err != nil {
			return err
		}
		report.Released++
	}
	return nil
}

func (uc *ReconcileUseCase) countRemediation(ctx context.Context, report *ReconcileReport) error {
	phase := settlement.PhaseFailed
	refunded := false
	failed, err := uc.log.List(ctx, settlement.ListFilter{Phase: &phase, Refunded: &refunded})
	if err != nil {
		return err
	}
	for _, attempt := range failed {
		if attempt.NeedsRemediation() {
			report.RemediationBacklog++
		}
	}
	return nil
}
