package settlement_test

import (
	"context"
	"testing"
	"time"

	settlementApp "github.com/cassiomorais/marketsettle/internal/application/settlement"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/cassiomorais/marketsettle/internal/ledger"
	"github.com/cassiomorais/marketsettle/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	reconcileTimeout   = time.Minute
	reconcileRetention = time.Hour
)

func newReconcileFixture() (*settlementApp.ReconcileUseCase, *testutil.MockCompensationLog, *testutil.RecordingGateway) {
	log := testutil.NewMockCompensationLog()
	gateway := testutil.NewRecordingGateway()
	uc := settlementApp.NewReconcileUseCase(log, gateway, reconcileTimeout, reconcileRetention, zerolog.Nop())
	return uc, log, gateway
}

func TestReconcile_ResumesInitiatedSaga(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 1_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 1_000)
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.PaymentsIssued != 1 {
		t.Errorf("expected 1 payment issued, got %d", report.PaymentsIssued)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRequested {
		t.Errorf("expected phase payment_requested, got %s", updated.Phase)
	}
	if updated.PaymentCallID == nil {
		t.Error("expected payment call ID to be recorded")
	}
	if got := len(gateway.CallsOf(settlement.CallPayment)); got != 1 {
		t.Errorf("expected 1 payment call, got %d", got)
	}
}

func TestReconcile_PaymentTimeoutFails(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 1_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 1_000)
	callID := uuid.New()
	attempt.MarkPaymentRequested(callID)
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TimedOut != 1 {
		t.Errorf("expected 1 timeout, got %d", report.TimedOut)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseFailed {
		t.Fatalf("expected phase failed, got %s", updated.Phase)
	}
	if updated.NeedsRemediation() {
		t.Error("unconfirmed payment must not flag remediation")
	}
	if len(gateway.Calls()) != 0 {
		t.Error("expected no calls for a timed-out payment")
	}
}

func TestReconcile_ResumesUnissuedTransfer(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 10_000, map[string]uint32{"creator": 500})
	attempt := testutil.NewTestSaleAttempt(l, "bob", 10_000)
	attempt.MarkPaymentRequested(uuid.New())
	payout, err := settlement.ComputePayout(attempt.AgreedPrice, l.Royalties, l.OwnerID)
	if err != nil {
		t.Fatal(err)
	}
	attempt.MarkPaymentConfirmed(payout)
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TransfersIssued != 1 {
		t.Errorf("expected 1 transfer issued, got %d", report.TransfersIssued)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseAssetTransferRequested {
		t.Fatalf("expected phase asset_transfer_requested, got %s", updated.Phase)
	}
	transfers := gateway.CallsOf(settlement.CallAssetTransfer)
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer call, got %d", len(transfers))
	}
	total, _ := transfers[0].Payout.Total()
	if !total.Equal(attempt.AgreedPrice) {
		t.Errorf("payout total %s does not equal agreed price %s", total, attempt.AgreedPrice)
	}
}

func TestReconcile_TransferTimeoutTriggersRefund(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 10_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 10_000)
	attempt.MarkPaymentRequested(uuid.New())
	payout, _ := settlement.ComputePayout(attempt.AgreedPrice, nil, l.OwnerID)
	attempt.MarkPaymentConfirmed(payout)
	attempt.MarkAssetTransferRequested(uuid.New())
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TimedOut != 1 || report.RefundsIssued != 1 {
		t.Errorf("expected 1 timeout and 1 refund, got %d and %d", report.TimedOut, report.RefundsIssued)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhasePaymentRefundRequested {
		t.Fatalf("expected phase payment_refund_requested, got %s", updated.Phase)
	}
	if updated.RefundCallID == nil {
		t.Error("expected refund call ID to be attached")
	}
	refunds := gateway.CallsOf(settlement.CallRefund)
	if len(refunds) != 1 {
		t.Fatalf("expected 1 refund call, got %d", len(refunds))
	}
	if !refunds[0].Amount.Equal(attempt.AgreedPrice) {
		t.Errorf("expected full refund %s, got %s", attempt.AgreedPrice, refunds[0].Amount)
	}
}

func TestReconcile_ReissuesStalledRefund(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 10_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 10_000)
	attempt.MarkPaymentRequested(uuid.New())
	payout, _ := settlement.ComputePayout(attempt.AgreedPrice, nil, l.OwnerID)
	attempt.MarkPaymentConfirmed(payout)
	attempt.MarkRefundRequested("asset transfer rejected")
	// No refund call was ever attached: the publish failed.
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RefundsIssued != 1 {
		t.Errorf("expected 1 refund issued, got %d", report.RefundsIssued)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.RefundCallID == nil {
		t.Error("expected a fresh refund call ID")
	}
	if got := len(gateway.CallsOf(settlement.CallRefund)); got != 1 {
		t.Errorf("expected 1 refund call, got %d", got)
	}
}

func TestReconcile_LeavesFreshSagasAlone(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 1_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 1_000)
	attempt.MarkPaymentRequested(uuid.New())
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Examined != 0 {
		t.Errorf("expected no sagas examined, got %d", report.Examined)
	}
	if len(gateway.Calls()) != 0 {
		t.Error("fresh saga must not be touched")
	}
}

func TestReconcile_ReleasesOldSettledRecords(t *testing.T) {
	ctx := context.Background()
	uc, log, _ := newReconcileFixture()

	l := testutil.NewTestListing("parcels", "r1", "alice", 1_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 1_000)
	attempt.MarkPaymentRequested(uuid.New())
	payout, _ := settlement.ComputePayout(attempt.AgreedPrice, nil, l.OwnerID)
	attempt.MarkPaymentConfirmed(payout)
	attempt.MarkAssetTransferRequested(uuid.New())
	attempt.MarkSettled()
	testutil.BackdateAttempt(attempt, 2*reconcileRetention)
	log.Append(ctx, attempt)

	// A fresh settled record stays queryable.
	fresh := testutil.NewTestSaleAttempt(testutil.NewTestListing("parcels", "r2", "alice", 1_000, nil), "carol", 1_000)
	fresh.MarkPaymentRequested(uuid.New())
	fresh.MarkPaymentConfirmed(payout)
	fresh.MarkAssetTransferRequested(uuid.New())
	fresh.MarkSettled()
	log.Append(ctx, fresh)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Released != 1 {
		t.Errorf("expected 1 release, got %d", report.Released)
	}
	if log.Len() != 1 {
		t.Errorf("expected 1 remaining record, got %d", log.Len())
	}
}

func TestReconcile_CountsRemediationBacklog(t *testing.T) {
	ctx := context.Background()
	uc, log, _ := newReconcileFixture()

	// A saga that failed holding funds, refund never confirmed.
	l := testutil.NewTestListing("parcels", "r1", "alice", 10_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 10_000)
	attempt.MarkPaymentRequested(uuid.New())
	payout, _ := settlement.ComputePayout(attempt.AgreedPrice, nil, l.OwnerID)
	attempt.MarkPaymentConfirmed(payout)
	attempt.MarkRefundRequested("asset transfer rejected")
	attempt.MarkFailed("refund abandoned by operator", false)
	log.Append(ctx, attempt)

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RemediationBacklog != 1 {
		t.Errorf("expected remediation backlog of 1, got %d", report.RemediationBacklog)
	}
}

func TestReconcile_SkipsSagaAdvancedDuringSweep(t *testing.T) {
	ctx := context.Background()
	uc, log, gateway := newReconcileFixture()
	advance := settlementApp.NewAdvanceSettlementUseCase(log, gateway, zerolog.Nop())

	l := testutil.NewTestListing("parcels", "r1", "alice", 1_000, nil)
	attempt := testutil.NewTestSaleAttempt(l, "bob", 1_000)
	callID := uuid.New()
	attempt.MarkPaymentRequested(callID)
	testutil.BackdateAttempt(attempt, 2*time.Minute)
	log.Append(ctx, attempt)

	// The payment confirmation lands after the sweep has read its snapshot
	// but before the sweep writes the timeout.
	stale, _ := log.Get(ctx, attempt.SagaID)
	log.ListPendingFunc = func(ctx context.Context, olderThan time.Time) ([]*settlement.SaleAttempt, error) {
		if err := advance.Execute(ctx, ledger.Callback{
			SagaID: attempt.SagaID, CallID: callID, Kind: settlement.CallPayment, OK: true,
			Amount: attempt.AgreedPrice,
		}); err != nil {
			t.Fatalf("payment callback: %v", err)
		}
		return []*settlement.SaleAttempt{stale}, nil
	}

	report, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TimedOut != 0 {
		t.Errorf("an advanced saga must not be counted timed out, got %d", report.TimedOut)
	}

	updated, _ := log.Get(ctx, attempt.SagaID)
	if updated.Phase != settlement.PhaseAssetTransferRequested {
		t.Fatalf("expected the confirmed payment to survive the sweep, got %s", updated.Phase)
	}
	if !updated.PaymentCollected {
		t.Error("expected collection to stay recorded")
	}
	if updated.NeedsRemediation() {
		t.Error("a live saga must not need remediation")
	}
	if got := len(gateway.CallsOf(settlement.CallRefund)); got != 0 {
		t.Errorf("expected no refund calls, got %d", got)
	}
}
