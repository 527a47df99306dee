package settlement_test

import (
	"context"
	"errors"
	"testing"

	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/cassiomorais/marketsettle/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newAdvanceFixture() (*settlementApp.AdvanceSettlementUseCase, *testutil.MockCompensationLog, *testutil.RecordingGateway) {
	log := testutil.NewMockCompensationLog()
	gateway := testutil.NewRecordingGateway()
	uc := settlementApp.NewAdvanceSettlementUseCase(log, gateway, zerolog.Nop())
	return uc, log, gateway
}

// seedPaymentRequested stores a saga awaiting its payment callback.
func seedPaymentRequested(t *testing.T, log *testutil.MockCompensationLog, royalties listing.RoyaltySpec) (*settlement.SaleAttempt, uuid.UUID) {
	t.Helper()
	l := testutil.NewTestListing("parcels", "r1", "alice", 10_000, royalties)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 10_000)
	callID := uuid.New()
	if err := attempt.MarkPaymentRequested(callID); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(context.Background(), attempt); err != nil {
		t.Fatal(err)
	}
	return attempt, callID
}

// seedTransferRequested stores a saga awaiting its asset-transfer callback.
func seedTransferRequested(t *testing.T, log *testutil.MockCompensationLog) (*settlement.SaleAttempt, uuid.UUID) {
	t.Helper()
	attempt, _ := seedPaymentRequested(t, log, listing.RoyaltySpec{"creator": 500})
	payout, err := settlement.ComputePayout(attempt.AgreedPrice, attempt.Listing.Royalties, attempt.Listing.OwnerID)
	if err != nil {
		t.Fatal(err)
	}
	if err := attempt.MarkPaymentConfirmed(payout); err != nil {
		t.Fatal(err)
	}
	callID := uuid.New()
	if err := attempt.MarkAssetTransferRequested(callID); err != nil {
		t.Fatal(err)
	}
	if err := log.Update(context.Background(), attempt); err != nil {
		t.Fatal(err)
	}
	return attempt, callID
}

func TestAdvance_PaymentConfirmed_IssuesTransferWithPayout(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, listing.RoyaltySpec{"creator": 1_000})

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
		Amount: attempt.AgreedPrice,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseAssetTransferRequested {
		t.Fatalf("expected phase asset_transfer_requested, got %s", updated.Phase)
	}
	if !updated.PaymentCollected {
		t.Error("expected payment to be recorded as collected")
	}

	transfers := gateway.CallsOf(settlement.CallAssetTransfer)
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer call, got %d", len(transfers))
	}
	if transfers[0].Party != "bob" {
		t.Errorf("expected transfer to bob, got %s", transfers[0].Party)
	}

	// The payout must conserve the agreed price exactly.
	total, err := updated.Payout.Total()
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(updated.AgreedPrice) {
		t.Errorf("payout total %s does not equal agreed price %s", total, updated.AgreedPrice)
	}
	if !updated.Payout["creator"].Equal(money.FromUint64(1_000)) {
		t.Errorf("expected creator leg 1000, got %s", updated.Payout["creator"])
	}
	if !updated.Payout["alice"].Equal(money.FromUint64(9_000)) {
		t.Errorf("expected seller leg 9000, got %s", updated.Payout["alice"])
	}
}

func TestAdvance_PaymentRejected_FailsWithoutRefund(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, nil)

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: false,
		Reason: "insufficient balance",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseFailed {
		t.Fatalf("expected phase failed, got %s", updated.Phase)
	}
	if updated.NeedsRemediation() {
		t.Error("no funds were held, so the saga must not need remediation")
	}
	if updated.LastError == nil || *updated.LastError != "insufficient balance" {
		t.Error("expected the ledger reason to be recorded")
	}
	if len(gateway.Calls()) != 0 {
		t.Error("expected no compensation calls when payment never completed")
	}
}

func TestAdvance_PaymentAmountMismatch_Refunds(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, nil)

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
		Amount: money.FromUint64(5_000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRefundRequested {
		t.Fatalf("expected phase payment_refund_requested, got %s", updated.Phase)
	}
	if !updated.PaymentCollected {
		t.Error("the ledger confirmed collecting funds, so collection must be recorded")
	}
	if updated.LastError == nil {
		t.Error("expected the amount mismatch to be recorded")
	}

	if got := len(gateway.CallsOf(settlement.CallAssetTransfer)); got != 0 {
		t.Fatalf("expected no transfer call for a mismatched amount, got %d", got)
	}
	refunds := gateway.CallsOf(settlement.CallRefund)
	if len(refunds) != 1 {
		t.Fatalf("expected 1 refund call, got %d", len(refunds))
	}
	if refunds[0].Party != "bob" {
		t.Errorf("expected refund to the buyer, got %s", refunds[0].Party)
	}
}

func TestAdvance_TransferConfirmed_Settles(t *testing.T) {
	ctx := context.Background()
	uc, log, _ := newAdvanceFixture()
	attempt, callID := seedTransferRequested(t, log)

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallAssetTransfer, OK: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseSettled {
		t.Fatalf("expected phase settled, got %s", updated.Phase)
	}
}

func TestAdvance_TransferRejected_IssuesRefund(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, callID := seedTransferRequested(t, log)

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallAssetTransfer, OK: false,
		Reason: "approval token revoked",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRefundRequested {
		t.Fatalf("expected phase payment_refund_requested, got %s", updated.Phase)
	}
	if updated.RefundCallID == nil {
		t.Fatal("expected refund call ID to be attached")
	}

	refunds := gateway.CallsOf(settlement.CallRefund)
	if len(refunds) != 1 {
		t.Fatalf("expected 1 refund call, got %d", len(refunds))
	}
	if refunds[0].Party != "bob" {
		t.Errorf("expected refund to the buyer, got %s", refunds[0].Party)
	}
	if !refunds[0].Amount.Equal(attempt.AgreedPrice) {
		t.Errorf("expected full refund of %s, got %s", attempt.AgreedPrice, refunds[0].Amount)
	}
}

func TestAdvance_RefundConfirmed_FailsRefunded(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, transferCallID := seedTransferRequested(t, log)

	if err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: transferCallID, Kind: settlement.CallAssetTransfer, OK: false,
		Reason: "asset ledger rejected transfer",
	}); err != nil {
		t.Fatal(err)
	}
	refundCallID := gateway.CallsOf(settlement.CallRefund)[0].CallID

	if err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: refundCallID, Kind: settlement.CallRefund, OK: true,
		Amount: attempt.AgreedPrice,
	}); err != nil {
		t.Fatal(err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseFailed {
		t.Fatalf("expected phase failed, got %s", updated.Phase)
	}
	if !updated.Refunded {
		t.Error("expected the refund to be recorded")
	}
	if updated.NeedsRemediation() {
		t.Error("a refunded failure must not need remediation")
	}
}

func TestAdvance_RefundPublishFailure_StaysVisiblyOwed(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	gateway.RefundErr = domainErrors.ErrLedgerUnavailable
	attempt, callID := seedTransferRequested(t, log)

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallAssetTransfer, OK: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRefundRequested {
		t.Fatalf("expected phase payment_refund_requested, got %s", updated.Phase)
	}
	if updated.RefundCallID != nil {
		t.Error("expected no refund call ID when the publish failed")
	}
}

func TestAdvance_DuplicateCallbackIsNoop(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, nil)

	cb := ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
		Amount: attempt.AgreedPrice,
	}
	if err := uc.Execute(ctx, cb); err != nil {
		t.Fatal(err)
	}
	first, _ := log.Get(ctx, attempt.SagaID)
	firstCalls := len(gateway.Calls())

	// Redelivery of the same callback must not move the saga or issue
	// another external call.
	if err := uc.Execute(ctx, cb); err != nil {
		t.Fatalf("duplicate delivery must be accepted: %v", err)
	}
	second, _ := log.Get(ctx, attempt.SagaID)
	if second.Phase != first.Phase {
		t.Errorf("duplicate changed phase from %s to %s", first.Phase, second.Phase)
	}
	if len(gateway.Calls()) != firstCalls {
		t.Error("duplicate issued extra external calls")
	}
}

func TestAdvance_TerminalSagaIgnoresLateCallbacks(t *testing.T) {
	ctx := context.Background()
	uc, log, _ := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, nil)

	if err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: false,
	}); err != nil {
		t.Fatal(err)
	}

	// A late success for the same call must not resurrect the failed saga.
	if err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
	}); err != nil {
		t.Fatalf("late callback must be a no-op: %v", err)
	}
	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseFailed {
		t.Errorf("expected phase to stay failed, got %s", updated.Phase)
	}
}

func TestAdvance_MismatchedCallIDIsNoop(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newAdvanceFixture()
	attempt, _ := seedPaymentRequested(t, log, nil)

	if err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: uuid.New(), Kind: settlement.CallPayment, OK: true,
	}); err != nil {
		t.Fatalf("stale callback must be a no-op: %v", err)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRequested {
		t.Errorf("expected phase unchanged, got %s", updated.Phase)
	}
	if len(gateway.Calls()) != 0 {
		t.Error("stale callback issued external calls")
	}
}

func TestAdvance_UnknownSaga(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newAdvanceFixture()

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: uuid.New(), CallID: uuid.New(), Kind: settlement.CallPayment, OK: true,
	})
	if !errors.Is(err, domainErrors.ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
}

func TestAdvance_RetriesWhenSagaChangesUnderneath(t *testing.T) {
	ctx := context.Background()
	uc, log, _ := newAdvanceFixture()
	attempt, callID := seedPaymentRequested(t, log, nil)

	// The first write loses the version race; the retry re-reads and lands.
	raced := false
	log.UpdateFunc = func(ctx context.Context, s *settlement.SaleAttempt) error {
		if !raced {
			raced = true
			return domainErrors.ErrStaleRecord
		}
		log.UpdateFunc = nil
		return log.Update(ctx, s)
	}

	err := uc.Execute(ctx, ledger.Callback{
		SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
		Amount: attempt.AgreedPrice,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !raced {
		t.Fatal("expected the first write to be rejected as stale")
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseAssetTransferRequested {
		t.Fatalf("expected phase asset_transfer_requested, got %s", updated.Phase)
	}
}

func TestCompensationLog_StaleCopyCannotOverwrite(t *testing.T) {
	ctx := context.Background()
	log := testutil.NewMockCompensationLog()
	attempt, _ := seedPaymentRequested(t, log, nil)

	fresh, _ := log.Get(ctx, attempt.SagaID)
	stale, _ := log.Get(ctx, attempt.SagaID)

	if err := fresh.MarkPaymentConfirmed(settlement.PayoutMap{"alice": attempt.AgreedPrice}); err != nil {
		t.Fatal(err)
	}
	if err := log.Update(ctx, fresh); err != nil {
		t.Fatalf("first writer must win: %v", err)
	}

	if err := stale.MarkFailed("payment callback timed out", false); err != nil {
		t.Fatal(err)
	}
	if err := log.Update(ctx, stale); !errors.Is(err, domainErrors.ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord for the second writer, got %v", err)
	}

	stored, _ := log.Get(ctx, attempt.SagaID)
	if stored.Phase != settlement.PhasePaymentConfirmed {
		t.Fatalf("expected the confirmed payment to survive, got %s", stored.Phase)
	}
	if !stored.PaymentCollected {
		t.Error("expected collection to stay recorded")
	}
}
