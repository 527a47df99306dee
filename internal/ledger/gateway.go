// Package ledger adapts the external payment ledger and asset-ownership
// ledger behind an asynchronous call contract: the saga fires a call, and the
// gateway guarantees exactly one terminal callback per call ID (or the saga's
// timeout policy treats silence as failure).
package ledger

import (
	"context"

	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/google/uuid"
)

// FundFlow selects the direction of the payment-collection call. The
// conservation property of settled sagas is what validates the configured
// direction end to end.
type FundFlow string

const (
	// FundFlowCollect moves the buyer's funds into escrow (the intended
	// marketplace semantics).
	FundFlowCollect FundFlow = "collect"
	// FundFlowDisburse moves funds toward the buyer, matching the inverted
	// direction observed in a legacy deployment. Kept selectable, not default.
	FundFlowDisburse FundFlow = "disburse"
)

// AssetRef identifies the asset a transfer call operates on.
type AssetRef struct {
	CollectionID  string
	AssetID       string
	ApprovalToken string
}

// Callback is the single terminal result delivered for an issued call.
type Callback struct {
	SagaID uuid.UUID
	CallID uuid.UUID
	Kind   settlement.CallKind
	OK     bool
	// Amount is the confirmed amount for payment and refund callbacks.
	Amount money.Amount
	Reason string
}

// Gateway issues asynchronous calls against the external ledgers. Each call
// returns a correlation call ID immediately; the outcome arrives later as a
// Callback carrying that ID.
type Gateway interface {
	// RequestPayment asks the payment ledger to collect amount from payer.
	RequestPayment(ctx context.Context, sagaID uuid.UUID, payerID string, amount money.Amount) (uuid.UUID, error)

	// RequestAssetTransfer asks the asset ledger to reassign ownership to
	// buyer and distribute the payout legs. The asset ledger reports overall
	// failure on any partial payout failure, triggering the refund path.
	RequestAssetTransfer(ctx context.Context, sagaID uuid.UUID, asset AssetRef, buyerID string, payout settlement.PayoutMap, memo string) (uuid.UUID, error)

	// RequestRefund asks the payment ledger to return amount to payee.
	RequestRefund(ctx context.Context, sagaID uuid.UUID, payeeID string, amount money.Amount) (uuid.UUID, error)
}
