// Package settlement contains the use cases that drive the purchase
// settlement saga: opening it from an accepted offer, advancing it on ledger
// callbacks, and reconciling sagas whose callbacks never arrived.
package settlement

import "context"

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
