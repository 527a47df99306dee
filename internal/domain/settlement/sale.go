// Package settlement models the purchase-settlement saga: a cross-service
// workflow that collects payment, transfers asset ownership with a royalty
// payout, and compensates with a refund when a later step fails after payment
// was taken.
package settlement

import (
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/pkg/fsm"
	"github.com/google/uuid"
)

// Phase is the persisted state of a sale attempt.
type Phase string

const (
	PhaseInitiated              Phase = "initiated"
	PhasePaymentRequested       Phase = "payment_requested"
	PhasePaymentConfirmed       Phase = "payment_confirmed"
	PhaseAssetTransferRequested Phase = "asset_transfer_requested"
	PhaseSettled                Phase = "settled"
	PhasePaymentRefundRequested Phase = "payment_refund_requested"
	PhaseFailed                 Phase = "failed"
)

// phaseTable encodes the allowed phase transitions. The asset-transfer call
// can only be issued out of payment_confirmed, which is what guarantees the
// payment callback is always processed before the transfer call exists.
var phaseTable = fsm.Table[Phase]{
	PhaseInitiated:        {PhasePaymentRequested},
	PhasePaymentRequested: {PhasePaymentConfirmed, PhaseFailed},
	PhasePaymentConfirmed: {PhaseAssetTransferRequested, PhasePaymentRefundRequested},
	PhaseAssetTransferRequested: {PhaseSettled, PhasePaymentRefundRequested},
	PhasePaymentRefundRequested: {PhaseFailed},
	PhaseSettled:                {},
	PhaseFailed:                 {},
}

// CallKind identifies which external call a callback resolves.
type CallKind string

const (
	CallPayment       CallKind = "payment"
	CallAssetTransfer CallKind = "asset_transfer"
	CallRefund        CallKind = "refund"
)

// SaleAttempt is the durable saga record for one accepted offer. It is owned
// exclusively by its saga; concurrent flows never share a record.
type SaleAttempt struct {
	SagaID      uuid.UUID
	Listing     listing.Listing // snapshot taken when the listing was consumed
	BuyerID     string
	AgreedPrice money.Amount
	Phase       Phase
	Payout      PayoutMap

	// Correlation tokens for the at-most-one outstanding external call.
	PaymentCallID  *uuid.UUID
	TransferCallID *uuid.UUID
	RefundCallID   *uuid.UUID

	// PaymentCollected is set once the payment ledger confirms collection;
	// from that point on, any failure must produce a refund attempt.
	PaymentCollected bool

	// Refunded records whether the compensating refund was confirmed before
	// the saga reached failed.
	Refunded  bool
	LastError *string

	// Version guards compensation-log writes against lost updates: a write
	// only lands when the stored record still carries the version this copy
	// was loaded with.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSaleAttempt validates an offer against the consumed listing and opens a
// saga in the initiated phase. Validation failures here happen before any
// external call, so no compensation is ever needed for them.
func NewSaleAttempt(l listing.Listing, buyerID string, bid money.Amount) (*SaleAttempt, error) {
	if buyerID == "" {
		return nil, domainErrors.NewValidationError("buyer_id", "cannot be empty")
	}
	if bid.IsZero() || l.Price.IsZero() {
		return nil, domainErrors.ErrZeroAmount
	}
	if buyerID == l.OwnerID {
		return nil, domainErrors.ErrSelfTrade
	}
	if bid.Less(l.Price) {
		return nil, domainErrors.ErrBidTooLow
	}

	now := time.Now()
	return &SaleAttempt{
		SagaID:      uuid.New(),
		Listing:     l,
		BuyerID:     buyerID,
		AgreedPrice: bid,
		Phase:       PhaseInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks the phase table without mutating the record.
func (s *SaleAttempt) CanTransitionTo(next Phase) bool {
	return phaseTable.CanTransition(s.Phase, next)
}

// TransitionTo moves the saga to the next phase, rejecting transitions the
// phase table does not allow.
func (s *SaleAttempt) TransitionTo(next Phase) error {
	if err := phaseTable.Transition(s.Phase, next); err != nil {
		return domainErrors.NewDomainError(
			"invalid_phase_transition",
			err.Error(),
			domainErrors.ErrInvalidPhaseTransition,
		)
	}
	s.Phase = next
	s.UpdatedAt = time.Now()
	return nil
}

// IsTerminal reports whether the saga has reached settled or failed.
func (s *SaleAttempt) IsTerminal() bool {
	return phaseTable.IsTerminal(s.Phase)
}

// MarkPaymentRequested records the outstanding payment-collection call.
func (s *SaleAttempt) MarkPaymentRequested(callID uuid.UUID) error {
	if err := s.TransitionTo(PhasePaymentRequested); err != nil {
		return err
	}
	s.PaymentCallID = &callID
	return nil
}

// MarkPaymentConfirmed records the successful payment callback and the payout
// split computed for the transfer call.
func (s *SaleAttempt) MarkPaymentConfirmed(payout PayoutMap) error {
	if err := s.TransitionTo(PhasePaymentConfirmed); err != nil {
		return err
	}
	s.PaymentCollected = true
	s.Payout = payout
	return nil
}

// MarkAssetTransferRequested records the outstanding transfer-with-payout call.
func (s *SaleAttempt) MarkAssetTransferRequested(callID uuid.UUID) error {
	if err := s.TransitionTo(PhaseAssetTransferRequested); err != nil {
		return err
	}
	s.TransferCallID = &callID
	return nil
}

// MarkSettled finishes the saga successfully.
func (s *SaleAttempt) MarkSettled() error {
	return s.TransitionTo(PhaseSettled)
}

// MarkRefundRequested enters the compensation branch after payment was
// confirmed but a later step failed. The refund call ID is attached
// separately so the phase can be entered even when issuing the refund call
// itself failed and must be retried.
func (s *SaleAttempt) MarkRefundRequested(reason string) error {
	if err := s.TransitionTo(PhasePaymentRefundRequested); err != nil {
		return err
	}
	s.LastError = &reason
	return nil
}

// AttachRefundCall records the outstanding (possibly re-issued) refund call.
func (s *SaleAttempt) AttachRefundCall(callID uuid.UUID) {
	s.RefundCallID = &callID
	s.UpdatedAt = time.Now()
}

// MarkFailed finishes the saga unsuccessfully. refunded records whether the
// buyer's funds were returned.
func (s *SaleAttempt) MarkFailed(reason string, refunded bool) error {
	if err := s.TransitionTo(PhaseFailed); err != nil {
		return err
	}
	s.Refunded = refunded
	s.LastError = &reason
	return nil
}

// NeedsRemediation reports whether the saga failed holding the buyer's funds
// without a confirmed refund. Such records stay in the compensation log until
// an operator resolves them.
func (s *SaleAttempt) NeedsRemediation() bool {
	return s.Phase == PhaseFailed && s.PaymentCollected && !s.Refunded
}

// OutstandingCall returns the call the saga is currently suspended on, if any.
func (s *SaleAttempt) OutstandingCall() (uuid.UUID, CallKind, bool) {
	switch s.Phase {
	case PhasePaymentRequested:
		if s.PaymentCallID != nil {
			return *s.PaymentCallID, CallPayment, true
		}
	case PhaseAssetTransferRequested:
		if s.TransferCallID != nil {
			return *s.TransferCallID, CallAssetTransfer, true
		}
	case PhasePaymentRefundRequested:
		if s.RefundCallID != nil {
			return *s.RefundCallID, CallRefund, true
		}
	}
	return uuid.UUID{}, "", false
}
