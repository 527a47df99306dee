package money_test

import (
	"encoding/json"
	"testing"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/cassiomorais/marketsettle/internal/domain/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxUint128 = 2^128 - 1
const maxUint128 = "340282366920938463463374607431768211455"

func TestParse(t *testing.T) {
	a, err := money.Parse("1000")
	require.NoError(t, err)
	assert.Equal(t, "1000", a.String())

	max, err := money.Parse(maxUint128)
	require.NoError(t, err)
	assert.Equal(t, maxUint128, max.String())

	_, err = money.Parse("340282366920938463463374607431768211456") // 2^128
	assert.ErrorIs(t, err, domainErrors.ErrAmountOverflow)

	_, err = money.Parse("-5")
	assert.Error(t, err)

	_, err = money.Parse("12abc")
	assert.Error(t, err)
}

func TestAddOverflow(t *testing.T) {
	max := money.MustParse(maxUint128)

	_, err := max.Add(money.FromUint64(1))
	assert.ErrorIs(t, err, domainErrors.ErrAmountOverflow)

	sum, err := money.FromUint64(400).Add(money.FromUint64(600))
	require.NoError(t, err)
	assert.True(t, sum.Equal(money.FromUint64(1000)))
}

func TestSubUnderflow(t *testing.T) {
	_, err := money.FromUint64(1).Sub(money.FromUint64(2))
	assert.ErrorIs(t, err, domainErrors.ErrAmountOverflow)

	diff, err := money.FromUint64(1000).Sub(money.FromUint64(100))
	require.NoError(t, err)
	assert.Equal(t, "900", diff.String())
}

func TestMulUint64Overflow(t *testing.T) {
	max := money.MustParse(maxUint128)

	_, err := max.MulUint64(2)
	assert.ErrorIs(t, err, domainErrors.ErrAmountOverflow)

	prod, err := money.FromUint64(1500).MulUint64(3)
	require.NoError(t, err)
	assert.Equal(t, "4500", prod.String())
}

func TestMulBasisPoints(t *testing.T) {
	price := money.FromUint64(1000)

	tenPct, err := price.MulBasisPoints(1000)
	require.NoError(t, err)
	assert.Equal(t, "100", tenPct.String())

	// Truncation: 333bp of 1000 = 33.3 -> 33
	trunc, err := price.MulBasisPoints(333)
	require.NoError(t, err)
	assert.Equal(t, "33", trunc.String())

	full, err := price.MulBasisPoints(10000)
	require.NoError(t, err)
	assert.True(t, full.Equal(price))

	_, err = price.MulBasisPoints(10001)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRoyaltySpec)

	// No intermediate overflow at the top of the domain.
	max := money.MustParse(maxUint128)
	half, err := max.MulBasisPoints(5000)
	require.NoError(t, err)
	assert.Equal(t, -1, half.Cmp(max))
}

func TestJSONRoundTrip(t *testing.T) {
	a := money.MustParse(maxUint128)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"`+maxUint128+`"`, string(data))

	var back money.Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(a))

	// Numbers are rejected: they would lose precision.
	assert.Error(t, json.Unmarshal([]byte(`1000`), &back))
}

func TestScan(t *testing.T) {
	var a money.Amount
	require.NoError(t, a.Scan("12345"))
	assert.Equal(t, "12345", a.String())

	require.NoError(t, a.Scan([]byte("67890")))
	assert.Equal(t, "67890", a.String())

	require.NoError(t, a.Scan(int64(42)))
	assert.Equal(t, "42", a.String())

	assert.ErrorIs(t, a.Scan(int64(-1)), domainErrors.ErrAmountOverflow)
	assert.Error(t, a.Scan(3.14))
}
