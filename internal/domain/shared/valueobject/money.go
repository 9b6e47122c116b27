package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept for prices and totals
const MoneyPlaces int32 = 2

// Currency is a lowercase ISO 4217 code as the payment providers expect it
type Currency string

const (
	USD Currency = "usd"
	EUR Currency = "eur"
	SAR Currency = "sar"
)

// DefaultCurrency is the store currency
const DefaultCurrency = USD

// ParseCurrency normalizes a configured currency code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	return Currency(code), nil
}

// Upper returns the uppercase code used by the wallet provider
func (c Currency) Upper() string {
	return strings.ToUpper(string(c))
}

// RoundMoney rounds half away from zero to two decimal places
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// LineTotal returns unit × quantity rounded to two places
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return RoundMoney(unit.Mul(decimal.NewFromInt(int64(quantity))))
}

// ToMinorUnits converts an amount into integer cents.
// Amounts with more than two decimal places are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, errors.New("amount cannot be negative")
	}
	cents := amount.Shift(MoneyPlaces)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, MoneyPlaces)
	}
	return cents.IntPart(), nil
}

// FromMinorUnits converts integer cents back into a decimal amount
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyPlaces)
}

// FormatAmount renders an amount with exactly two decimals ("240.00")
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyPlaces)
}
