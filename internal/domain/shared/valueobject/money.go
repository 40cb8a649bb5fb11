package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// DefaultCurrency applies when a partner has not picked one
const DefaultCurrency = USD

// ParseCurrency normalizes a code to upper case. The code must be three
// letters; whether ISO 4217 knows it is left to request validation.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || strings.Trim(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	return Currency(code), nil
}

var hundred = decimal.NewFromInt(100)

// Money is an amount in one currency. Arithmetic keeps full precision until
// Round is called.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("money without a currency")
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is NewMoney for currencies already known to be set
func MustMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency Currency) Money { return Money{currency: currency} }

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }

// Add fails for amounts in different currencies
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s + %s", m.currency, other.currency)
	}
	return m.with(m.amount.Add(other.amount)), nil
}

func (m Money) MustAdd(other Money) Money {
	sum, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return sum
}

func (m Money) MultiplyByInt(n int64) Money {
	return m.with(m.amount.Mul(decimal.NewFromInt(n)))
}

// Percentage is percent hundredths of m, unrounded
func (m Money) Percentage(percent decimal.Decimal) Money {
	return m.with(m.amount.Mul(percent).Div(hundred))
}

// Round rounds half away from zero
func (m Money) Round(places int32) Money {
	return m.with(m.amount.Round(places))
}

func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + string(m.currency)
}

func (m Money) with(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: m.currency}
}

// moneyJSON is the wire form. The amount travels as a string so no client
// parses it through a float.
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(2), Currency: m.currency})
}

// UnmarshalJSON accepts a missing currency as DefaultCurrency
func (m *Money) UnmarshalJSON(data []byte) error {
	var wire moneyJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(wire.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", wire.Amount, err)
	}
	if wire.Currency == "" {
		wire.Currency = DefaultCurrency
	}
	*m = Money{amount: amount, currency: wire.Currency}
	return nil
}
