package settlement_test

import (
	"testing"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/listing"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/cassiomorais/marketsettle/internal/domain/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePayout_EmptySpec(t *testing.T) {
	payout, err := settlement.ComputePayout(money.FromUint64(1000), nil, "seller.near")
	require.NoError(t, err)
	require.Len(t, payout, 1)
	assert.Equal(t, "1000", payout["seller.near"].String())
}

func TestComputePayout_TenPercentRoyalty(t *testing.T) {
	spec := listing.RoyaltySpec{"artist.near": 1000} // 10%
	payout, err := settlement.ComputePayout(money.FromUint64(1000), spec, "seller.near")
	require.NoError(t, err)
	assert.Equal(t, "100", payout["artist.near"].String())
	assert.Equal(t, "900", payout["seller.near"].String())
}

func TestComputePayout_Conservation(t *testing.T) {
	cases := []struct {
		name  string
		price money.Amount
		spec  listing.RoyaltySpec
	}{
		{"empty spec", money.FromUint64(1000), nil},
		{"single recipient", money.FromUint64(1000), listing.RoyaltySpec{"a": 1000}},
		{"truncating shares", money.FromUint64(999), listing.RoyaltySpec{"a": 333, "b": 333, "c": 333}},
		{"full 100%", money.FromUint64(1000), listing.RoyaltySpec{"a": 10000}},
		{"tiny price big spec", money.FromUint64(3), listing.RoyaltySpec{"a": 100, "b": 200, "c": 300}},
		{"128-bit price", money.MustParse("340282366920938463463374607431768211455"), listing.RoyaltySpec{"a": 2500, "b": 2500}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payout, err := settlement.ComputePayout(tc.price, tc.spec, "seller.near")
			require.NoError(t, err)
			total, err := payout.Total()
			require.NoError(t, err)
			assert.True(t, total.Equal(tc.price), "expected payout total %s to equal price %s", total, tc.price)
		})
	}
}

func TestComputePayout_SellerIsAlsoRoyaltyRecipient(t *testing.T) {
	spec := listing.RoyaltySpec{"seller.near": 1000, "artist.near": 500}
	payout, err := settlement.ComputePayout(money.FromUint64(1000), spec, "seller.near")
	require.NoError(t, err)
	// 100 royalty + 850 remainder collapse into one leg.
	assert.Equal(t, "950", payout["seller.near"].String())
	assert.Equal(t, "50", payout["artist.near"].String())

	total, err := payout.Total()
	require.NoError(t, err)
	assert.Equal(t, "1000", total.String())
}

func TestComputePayout_InvalidSpecs(t *testing.T) {
	price := money.FromUint64(1000)

	_, err := settlement.ComputePayout(price, listing.RoyaltySpec{"a": 6000, "b": 5000}, "seller.near")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRoyaltySpec)

	_, err = settlement.ComputePayout(price, listing.RoyaltySpec{"": 100}, "seller.near")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRoyaltySpec)

	_, err = settlement.ComputePayout(price, listing.RoyaltySpec{"a": 0}, "seller.near")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRoyaltySpec)

	oversized := listing.RoyaltySpec{}
	for i := 0; i < listing.MaxRoyaltyRecipients+1; i++ {
		oversized[string(rune('a'+i))] = 10
	}
	_, err = settlement.ComputePayout(price, oversized, "seller.near")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRoyaltySpec)

	_, err = settlement.ComputePayout(money.Zero(), nil, "seller.near")
	assert.ErrorIs(t, err, domainErrors.ErrZeroAmount)
}

func TestComputePayout_DroppedDustStaysWithSeller(t *testing.T) {
	// 1bp of 100 = 0.01, truncates to zero; the whole price must still land
	// with the seller.
	payout, err := settlement.ComputePayout(money.FromUint64(100), listing.RoyaltySpec{"artist.near": 1}, "seller.near")
	require.NoError(t, err)
	_, hasArtist := payout["artist.near"]
	assert.False(t, hasArtist)
	assert.Equal(t, "100", payout["seller.near"].String())
}
