package settlement

import (
	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
)

// PayoutMap is the agreed split of sale proceeds among seller and royalty
// recipients. Values always sum to exactly the agreed price.
type PayoutMap map[string]money.Amount

// Total sums all payout legs.
func (p PayoutMap) Total() (money.Amount, error) {
	total := money.Zero()
	var err error
	for _, amount := range p {
		if total, err = total.Add(amount); err != nil {
			return money.Zero(), err
		}
	}
	return total, nil
}

// ComputePayout splits agreedPrice among the royalty recipients and the
// seller. Each royalty leg is share-basis-points of the price with integer
// truncation; the remainder, including all rounding loss, is credited to the
// seller. Pure and deterministic; all arithmetic is overflow-checked.
func ComputePayout(agreedPrice money.Amount, royalties listing.RoyaltySpec, sellerID string) (PayoutMap, error) {
	if sellerID == "" {
		return nil, domainErrors.NewValidationError("seller_id", "cannot be empty")
	}
	if agreedPrice.IsZero() {
		return nil, domainErrors.ErrZeroAmount
	}
	if err := royalties.Validate(); err != nil {
		return nil, err
	}

	payout := make(PayoutMap, len(royalties)+1)
	royaltyTotal := money.Zero()
	for recipient, bp := range royalties {
		share, err := agreedPrice.MulBasisPoints(bp)
		if err != nil {
			return nil, err
		}
		if share.IsZero() {
			// Truncated to nothing; the loss accrues to the seller remainder.
			continue
		}
		if payout[recipient], err = payout[recipient].Add(share); err != nil {
			return nil, err
		}
		if royaltyTotal, err = royaltyTotal.Add(share); err != nil {
			return nil, err
		}
	}

	// Shares are capped at 10000bp each and truncate, so the total cannot
	// exceed the price; Sub failing here would mean a calculator bug.
	remainder, err := agreedPrice.Sub(royaltyTotal)
	if err != nil {
		return nil, err
	}
	if !remainder.IsZero() {
		if payout[sellerID], err = payout[sellerID].Add(remainder); err != nil {
			return nil, err
		}
	}

	return payout, nil
}
