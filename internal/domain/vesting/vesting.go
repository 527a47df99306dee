// Package vesting implements token package purchases and linear time-based
// vesting arithmetic. Everything here is deterministic pure-function math
// with overflow-checked 128-bit amounts; there is no cross-service
// coordination.
package vesting

import (
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
)

// Package is a purchasable token bundle: a fixed price in the payment token
// and the amount of vested tokens it grants.
type Package struct {
	Tier        uint8
	Price       money.Amount
	TokenAmount money.Amount
}

// Tier prices are denominated in 10^24 minor units, grants in 10^8.
var tiers = map[uint8]Package{
	1: {Tier: 1, Price: money.MustParse("100000000000000000000000000"), TokenAmount: money.MustParse("100000000000")},
	2: {Tier: 2, Price: money.MustParse("500000000000000000000000000"), TokenAmount: money.MustParse("750000000000")},
	3: {Tier: 3, Price: money.MustParse("1500000000000000000000000000"), TokenAmount: money.MustParse("3000000000000")},
}

// TierPackage returns the package for a tier, or ErrUnknownPackage.
func TierPackage(tier uint8) (Package, error) {
	p, ok := tiers[tier]
	if !ok {
		return Package{}, domainErrors.ErrUnknownPackage
	}
	return p, nil
}

// Quote is a priced package purchase.
type Quote struct {
	Tier        uint8
	Quantity    uint64
	TotalPrice  money.Amount
	TotalTokens money.Amount
}

// QuotePurchase prices quantity packages of the given tier and checks the
// attached payment covers it exactly. Quantity zero is treated as one.
func QuotePurchase(tier uint8, quantity uint64, attached money.Amount) (Quote, error) {
	p, err := TierPackage(tier)
	if err != nil {
		return Quote{}, err
	}
	if quantity == 0 {
		quantity = 1
	}

	totalPrice, err := p.Price.MulUint64(quantity)
	if err != nil {
		return Quote{}, err
	}
	totalTokens, err := p.TokenAmount.MulUint64(quantity)
	if err != nil {
		return Quote{}, err
	}
	if !attached.Equal(totalPrice) {
		return Quote{}, domainErrors.ErrPriceMismatch
	}

	return Quote{Tier: tier, Quantity: quantity, TotalPrice: totalPrice, TotalTokens: totalTokens}, nil
}

// Schedule is a linear vesting schedule over a granted token amount.
type Schedule struct {
	Total    money.Amount
	Claimed  money.Amount
	Start    time.Time
	Duration time.Duration
	Cliff    time.Duration
	Active   bool
}

// NewSchedule validates and builds a vesting schedule.
func NewSchedule(total money.Amount, start time.Time, duration, cliff time.Duration) (*Schedule, error) {
	if total.IsZero() {
		return nil, domainErrors.ErrZeroAmount
	}
	if duration <= 0 {
		return nil, domainErrors.NewValidationError("duration", "must be positive")
	}
	if cliff < 0 || cliff > duration {
		return nil, domainErrors.NewValidationError("cliff", "must be between zero and the duration")
	}
	return &Schedule{Total: total, Start: start, Duration: duration, Cliff: cliff, Active: true}, nil
}

// VestedAt returns the amount vested at t: zero before the cliff, the full
// total after the duration, linear in between with integer truncation.
func (s *Schedule) VestedAt(t time.Time) money.Amount {
	if t.Before(s.Start.Add(s.Cliff)) {
		return money.Zero()
	}
	end := s.Start.Add(s.Duration)
	if !t.Before(end) {
		return s.Total
	}
	elapsed := t.Sub(s.Start)
	// elapsed < duration here, so the result is strictly below Total and the
	// 128-bit check cannot fire.
	vested, err := s.Total.MulDiv(uint64(elapsed), uint64(s.Duration))
	if err != nil {
		return money.Zero()
	}
	return vested
}

// ClaimableAt returns the vested amount not yet claimed.
func (s *Schedule) ClaimableAt(t time.Time) money.Amount {
	claimable, err := s.VestedAt(t).Sub(s.Claimed)
	if err != nil {
		// Claimed can never exceed vested; treat an inconsistent record as
		// having nothing left to claim.
		return money.Zero()
	}
	return claimable
}

// Claim moves amount from claimable to claimed at time t.
func (s *Schedule) Claim(amount money.Amount, t time.Time) error {
	if !s.Active {
		return domainErrors.ErrScheduleInactive
	}
	if amount.IsZero() {
		return domainErrors.ErrZeroAmount
	}
	if s.ClaimableAt(t).Less(amount) {
		return domainErrors.NewDomainError(
			"claim_exceeds_vested",
			"claim amount exceeds the vested balance",
			domainErrors.ErrInvalidInput,
		)
	}
	claimed, err := s.Claimed.Add(amount)
	if err != nil {
		return err
	}
	s.Claimed = claimed
	return nil
}
