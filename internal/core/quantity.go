package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QtyScale is the number of fractional kilogram digits the ledger stores (gram precision).
const QtyScale = 3

var maxQty = decimal.New(1, 11) // NUMERIC(14,3)

// ValidateQty checks that q is a usable operation quantity: strictly positive, at most
// QtyScale fractional digits and below the storage limit.
func ValidateQty(field string, q decimal.Decimal) error {
	if !q.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrValidation, field, q)
	}
	if !q.Equal(q.Truncate(QtyScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places, got %s", ErrValidation, field, QtyScale, q)
	}
	if q.GreaterThanOrEqual(maxQty) {
		return fmt.Errorf("%w: %s is too large, got %s", ErrValidation, field, q)
	}
	return nil
}

// ParseQty parses a decimal kilogram quantity from user input and validates it.
func ParseQty(field, s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number: %q", ErrValidation, field, s)
	}
	if err := ValidateQty(field, q); err != nil {
		return decimal.Zero, err
	}
	return q, nil
}

func requireText(field, s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return t, nil
}
