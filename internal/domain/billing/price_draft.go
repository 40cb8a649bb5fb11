package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceDraft is the text of a price field while it is being edited. Any text
// is kept as typed, so partial input such as "12." survives until the edit is
// committed. Commit turns the text into a price.
type PriceDraft struct {
	text string
}

// NewPriceDraft starts an edit from the current price
func NewPriceDraft(current decimal.Decimal) PriceDraft {
	return PriceDraft{text: current.String()}
}

// DraftFromText starts an edit from raw text
func DraftFromText(text string) PriceDraft {
	return PriceDraft{text: text}
}

// Edit replaces the text being edited
func (d *PriceDraft) Edit(text string) {
	d.text = text
}

// Text returns the text exactly as typed
func (d PriceDraft) Text() string {
	return d.text
}

// Commit normalizes the text to a price. Empty or non-numeric text resolves
// to 0 and negative values are clamped to 0.
func (d PriceDraft) Commit() decimal.Decimal {
	s := strings.TrimSpace(d.text)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return clampPrice(v)
}
