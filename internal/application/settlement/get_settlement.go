package settlement

import (
	"context"

	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/google/uuid"
)

// GetSettlementUseCase serves read-only saga lookups for the API.
type GetSettlementUseCase struct {
	log settlement.CompensationLog
}

// NewGetSettlementUseCase creates a new GetSettlementUseCase.
func NewGetSettlementUseCase(log settlement.CompensationLog) *GetSettlementUseCase {
	return &GetSettlementUseCase{log: log}
}

// Execute returns the saga record by ID.
func (uc *GetSettlementUseCase) Execute(ctx context.Context, sagaID uuid.UUID) (*settlement.SaleAttempt, error) {
	return uc.log.Get(ctx, sagaID)
}

// List returns saga records matching the filter, most recent first.
func (uc *GetSettlementUseCase) List(ctx context.Context, f settlement.ListFilter) ([]*settlement.SaleAttempt, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return uc.log.List(ctx, f)
}
