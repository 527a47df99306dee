package asset

import (
	"context"

	"github.com/cassiomorais/marketsettle/internal/domain/money"
)

// Repository is the persistence contract for the asset registry.
type Repository interface {
	// NextSequence issues the next mint ordinal.
	NextSequence(ctx context.Context) (uint64, error)

	// Create persists a parcel, returning ErrDuplicateAsset when either the
	// asset ID or the coordinate pair is already taken.
	Create(ctx context.Context, a *Asset) error

	Get(ctx context.Context, id string) (*Asset, error)
	GetByPosition(ctx context.Context, x, y string) (*Asset, error)
	List(ctx context.Context, limit, offset int) ([]*Asset, error)

	// Storage-fee accounting: a per-owner deposit balance, debited by mint
	// storage costs.
	AddStorageDeposit(ctx context.Context, ownerID string, amount money.Amount) error
	StorageBalance(ctx context.Context, ownerID string) (money.Amount, error)
}
