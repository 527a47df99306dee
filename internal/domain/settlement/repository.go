package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter holds optional filters for operator views of the log.
type ListFilter struct {
	Phase    *Phase
	Refunded *bool
	Limit    int
	Offset   int
}

// CompensationLog is the durable store of in-flight and failed sale attempts,
// keyed by saga ID and updated on every phase transition.
//
// Failed records are never deleted: a failed, unrefunded saga must stay
// visible for operator remediation. Settled records are released once the
// transfer is confirmed.
type CompensationLog interface {
	// Append persists a freshly initiated sale attempt.
	Append(ctx context.Context, s *SaleAttempt) error

	// Update persists a phase transition. The write compares-and-swaps on
	// s.Version: if the stored record no longer carries that version the
	// write is refused with ErrStaleRecord and s is left untouched, so the
	// caller can re-read and decide again. On success the implementation
	// bumps s.Version to match the store.
	Update(ctx context.Context, s *SaleAttempt) error

	Get(ctx context.Context, sagaID uuid.UUID) (*SaleAttempt, error)

	// GetByCallID resolves the saga awaiting the given correlation token.
	GetByCallID(ctx context.Context, callID uuid.UUID) (*SaleAttempt, error)

	// ListPending returns non-terminal records whose last transition is older
	// than the cutoff. Feeds the timeout/refund reconciler.
	ListPending(ctx context.Context, olderThan time.Time) ([]*SaleAttempt, error)

	List(ctx context.Context, f ListFilter) ([]*SaleAttempt, error)

	// Release removes a settled record. Releasing a non-settled record is an
	// error; failed records are retained for audit.
	Release(ctx context.Context, sagaID uuid.UUID) error
}
