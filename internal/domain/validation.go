package domain

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits an amount may carry.
const AmountScale = 2

// ValidateAmount checks that amount is strictly positive and has at most AmountScale decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount parses a decimal string and validates it.
func ParseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// DeriveAccountID builds the account identifier from a display name and a contact:
// the lowercased name with all whitespace removed, "@", and the last 4 characters of contact.
func DeriveAccountID(name, contact string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(contact) == "" {
		return "", ErrInvalidAccountDetails
	}

	local := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)

	suffix := []rune(strings.TrimSpace(contact))
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}

	return local + "@" + string(suffix), nil
}
