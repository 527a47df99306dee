package vesting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Grant is a purchased package bundle with its vesting schedule.
type Grant struct {
	ID        uuid.UUID
	BuyerID   string
	Tier      uint8
	Quantity  uint64
	Schedule  Schedule
	CreatedAt time.Time
}

// Repository is the persistence contract for purchased grants.
type Repository interface {
	Create(ctx context.Context, g *Grant) error
	Get(ctx context.Context, id uuid.UUID) (*Grant, error)
	Update(ctx context.Context, g *Grant) error
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*Grant, error)
}
