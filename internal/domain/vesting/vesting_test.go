package vesting_test

import (
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/vesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotePurchase(t *testing.T) {
	p, err := vesting.TierPackage(1)
	require.NoError(t, err)

	q, err := vesting.QuotePurchase(1, 3, mulAmount(t, p.Price, 3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q.Quantity)
	assert.True(t, q.TotalTokens.Equal(mulAmount(t, p.TokenAmount, 3)))

	// Quantity zero is treated as one.
	q, err = vesting.QuotePurchase(2, 0, tierPrice(t, 2))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), q.Quantity)

	_, err = vesting.QuotePurchase(9, 1, money.FromUint64(1))
	assert.ErrorIs(t, err, domainErrors.ErrUnknownPackage)

	// Attached payment must match exactly, in both directions.
	_, err = vesting.QuotePurchase(1, 1, money.FromUint64(1))
	assert.ErrorIs(t, err, domainErrors.ErrPriceMismatch)
	over, aerr := tierPrice(t, 1).Add(money.FromUint64(1))
	require.NoError(t, aerr)
	_, err = vesting.QuotePurchase(1, 1, over)
	assert.ErrorIs(t, err, domainErrors.ErrPriceMismatch)
}

func TestQuotePurchase_Overflow(t *testing.T) {
	// Tier 3 price is ~1.5e27; ~2^63 of them overflows 128 bits.
	_, err := vesting.QuotePurchase(3, 1<<63, money.FromUint64(1))
	assert.ErrorIs(t, err, domainErrors.ErrAmountOverflow)
}

func TestScheduleLinearity(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	duration := 400 * 24 * time.Hour
	total := money.FromUint64(1_000_000)

	s, err := vesting.NewSchedule(total, start, duration, 0)
	require.NoError(t, err)

	assert.True(t, s.VestedAt(start.Add(-time.Hour)).IsZero())
	assert.Equal(t, "500000", s.VestedAt(start.Add(duration/2)).String())
	assert.True(t, s.VestedAt(start.Add(duration)).Equal(total))
	assert.True(t, s.VestedAt(start.Add(2*duration)).Equal(total))

	// Quarter point truncates down.
	quarter := s.VestedAt(start.Add(duration / 4))
	assert.Equal(t, "250000", quarter.String())
}

func TestScheduleCliff(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	duration := 2 * 365 * 24 * time.Hour
	cliff := duration / 4

	s, err := vesting.NewSchedule(money.FromUint64(1000), start, duration, cliff)
	require.NoError(t, err)

	// Nothing before the cliff, even though time has elapsed.
	assert.True(t, s.VestedAt(start.Add(cliff-time.Second)).IsZero())

	// At the cliff the full linear accrual since start unlocks at once.
	atCliff := s.VestedAt(start.Add(cliff))
	assert.Equal(t, "250", atCliff.String())
}

func TestScheduleClaim(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	duration := 100 * 24 * time.Hour

	s, err := vesting.NewSchedule(money.FromUint64(1000), start, duration, 0)
	require.NoError(t, err)

	half := start.Add(duration / 2)
	assert.Equal(t, "500", s.ClaimableAt(half).String())

	require.NoError(t, s.Claim(money.FromUint64(300), half))
	assert.Equal(t, "200", s.ClaimableAt(half).String())

	// Cannot claim past the vested balance.
	err = s.Claim(money.FromUint64(300), half)
	assert.Error(t, err)

	// Fully vested, the rest becomes claimable.
	end := start.Add(duration)
	assert.Equal(t, "700", s.ClaimableAt(end).String())
	require.NoError(t, s.Claim(money.FromUint64(700), end))
	assert.True(t, s.ClaimableAt(end).IsZero())

	s.Active = false
	assert.ErrorIs(t, s.Claim(money.FromUint64(1), end), domainErrors.ErrScheduleInactive)
}

func TestNewScheduleValidation(t *testing.T) {
	start := time.Now()
	_, err := vesting.NewSchedule(money.Zero(), start, time.Hour, 0)
	assert.ErrorIs(t, err, domainErrors.ErrZeroAmount)

	_, err = vesting.NewSchedule(money.FromUint64(1), start, 0, 0)
	assert.Error(t, err)

	_, err = vesting.NewSchedule(money.FromUint64(1), start, time.Hour, 2*time.Hour)
	assert.Error(t, err)
}

func tierPrice(t *testing.T, tier uint8) money.Amount {
	t.Helper()
	p, err := vesting.TierPackage(tier)
	require.NoError(t, err)
	return p.Price
}

func mulAmount(t *testing.T, a money.Amount, n uint64) money.Amount {
	t.Helper()
	out, err := a.MulUint64(n)
	require.NoError(t, err)
	return out
}
