package domain

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by an Amount.
const Scale = 2

const maxMinor = 1 << 62

// MaxBalance is the largest balance an account may hold.
const MaxBalance Amount = maxMinor

// Amount is a non-negative quantity of money stored in minor units (cents).
// Example: 10.50 is stored as 1050.
type Amount int64

// ParseAmount converts a decimal string such as "100.50" to minor units.
// More than Scale decimal places is rejected rather than rounded.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, E("ParseAmount", KindInvalidAmount, "%q is not a number", s)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts d to minor units.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(Scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, E("ParseAmount", KindInvalidAmount, "%s has more than %d decimal places", d.String(), Scale)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(maxMinor)) {
		return 0, E("ParseAmount", KindInvalidAmount, "%s is out of range", d.String())
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String renders the amount with exactly Scale decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// ExceedsBalanceLimit reports whether crediting a to balance would pass
// MaxBalance.
func ExceedsBalanceLimit(balance, a Amount) bool {
	return balance > MaxBalance-a
}

// Positive reports whether the amount may be moved.
func (a Amount) Positive() bool {
	return a > 0
}

// MarshalJSON renders the amount as a decimal string so clients never see
// floating point.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both `"12.50"` and `12.5`.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return E("ParseAmount", KindInvalidAmount, "%s is not a number", string(b))
	}
	v, err := AmountFromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// RequirePositive returns InvalidAmount for zero or negative amounts.
func RequirePositive(op string, a Amount) error {
	if !a.Positive() {
		return E(op, KindInvalidAmount, "amount must be positive, got %s", a)
	}
	return nil
}
