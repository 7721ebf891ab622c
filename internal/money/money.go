package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits in the currency's minor unit.
const Scale = 2

var (
	ErrMalformed = errors.New("malformed amount")
	ErrPrecision = errors.New("amount exceeds minor-unit precision")
)

var minorPerMajor = decimal.New(1, Scale)

// Amount is a monetary value expressed in minor units (paise).
type Amount int64

const Zero Amount = 0

// Parse reads a decimal string such as "25.50" or "10".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformed
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	return FromDecimal(d)
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return a
}

// FromDecimal converts d to minor units, rejecting values that need more
// than Scale fractional digits.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Mul(minorPerMajor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}

	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrMalformed, d.String())
	}

	return Amount(minor.IntPart()), nil
}

func FromMinor(minor int64) Amount { return Amount(minor) }

func (a Amount) Minor() int64 { return int64(a) }

func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -Scale) }

func (a Amount) String() string { return a.Decimal().StringFixed(Scale) }

func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }
func (a Amount) Mul(qty int64) Amount { return a * Amount(qty) }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }
func (a Amount) IsZero() bool { return a == 0 }
func (a Amount) LessThan(b Amount) bool { return a < b }
func (a Amount) GreaterThan(b Amount) bool { return a > b }

// MarshalJSON writes the amount as a fixed-point string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts "12.50" as well as 12.5.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		s = n.String()
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}
