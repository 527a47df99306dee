// Package money implements unsigned 128-bit token amounts in minor units.
//
// External ledgers quote balances as unsigned 128-bit integers, which do not
// fit in Go's native types. Amounts are backed by uint256.Int with every
// operation checked against the 128-bit domain; arithmetic never wraps.
package money

import (
	"database/sql/driver"
	"fmt"

	domainErrors "github.com/cassiomorais/marketsettle/internal/domain/errors"
	"github.com/holiman/uint256"
)

const maxBits = 128

// BasisPointsDenominator is the denominator for royalty shares (100% == 10000bp).
const BasisPointsDenominator = 10_000

// Amount is an unsigned 128-bit token amount in minor units.
// The zero value is the zero amount and is ready to use.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 returns an amount holding u.
func FromUint64(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// Parse parses a base-10 amount string.
func Parse(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, domainErrors.NewValidationError("amount", "not a valid unsigned integer: "+s)
	}
	if v.BitLen() > maxBits {
		return Amount{}, domainErrors.ErrAmountOverflow
	}
	return Amount{v: *v}, nil
}

// MustParse parses a base-10 amount string and panics on error. For fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money: MustParse(%q): %v", s, err))
	}
	return a
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares a and b, returning -1, 0 or 1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

// Less reports whether a < b.
func (a Amount) Less(b Amount) bool {
	return a.v.Lt(&b.v)
}

// Add returns a+b, or ErrAmountOverflow if the sum leaves the 128-bit domain.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount
	if _, carry := sum.v.AddOverflow(&a.v, &b.v); carry || sum.v.BitLen() > maxBits {
		return Amount{}, domainErrors.ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrAmountOverflow on underflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	var diff Amount
	if _, borrow := diff.v.SubOverflow(&a.v, &b.v); borrow {
		return Amount{}, domainErrors.ErrAmountOverflow
	}
	return diff, nil
}

// MulUint64 returns a*m, or ErrAmountOverflow if the product leaves the 128-bit domain.
func (a Amount) MulUint64(m uint64) (Amount, error) {
	var mul uint256.Int
	mul.SetUint64(m)
	var prod Amount
	if _, overflow := prod.v.MulOverflow(&a.v, &mul); overflow || prod.v.BitLen() > maxBits {
		return Amount{}, domainErrors.ErrAmountOverflow
	}
	return prod, nil
}

// MulBasisPoints returns a*bp/10000 with integer truncation.
// The 256-bit intermediate cannot overflow for 128-bit inputs, and the
// result never exceeds a for bp <= 10000.
func (a Amount) MulBasisPoints(bp uint32) (Amount, error) {
	if bp > BasisPointsDenominator {
		return Amount{}, domainErrors.ErrInvalidRoyaltySpec
	}
	var mul, den uint256.Int
	mul.SetUint64(uint64(bp))
	den.SetUint64(BasisPointsDenominator)
	var out Amount
	out.v.Mul(&a.v, &mul)
	out.v.Div(&out.v, &den)
	return out, nil
}

// MulDiv returns a*mul/div with integer truncation, computing the
// intermediate product in 256 bits so it cannot overflow.
func (a Amount) MulDiv(mul, div uint64) (Amount, error) {
	if div == 0 {
		return Amount{}, domainErrors.ErrInvalidInput
	}
	var m, d uint256.Int
	m.SetUint64(mul)
	d.SetUint64(div)
	var out Amount
	out.v.Mul(&a.v, &m)
	out.v.Div(&out.v, &d)
	if out.v.BitLen() > maxBits {
		return Amount{}, domainErrors.ErrAmountOverflow
	}
	return out, nil
}

// MarshalJSON encodes the amount as a decimal JSON string, never a number,
// so 128-bit values survive JSON round trips.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

// UnmarshalJSON decodes a decimal JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return domainErrors.NewValidationError("amount", "must be a decimal string")
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as NUMERIC text.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case int64:
		if v < 0 {
			return domainErrors.ErrAmountOverflow
		}
		*a = FromUint64(uint64(v))
		return nil
	case nil:
		*a = Zero()
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}
