package payment

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingOrderID    = errors.New("order id required")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount has more than two decimal places")
	ErrAmountTooLarge    = errors.New("amount exceeds the provider limit")
	ErrInvalidCurrency   = errors.New("currency must be a three letter ISO code")
	ErrActiveTransaction = errors.New("order already has an active or settled transaction")
)

const DefaultCurrency = "INR"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

func ValidateInitiateRequest(r InitiateRequest) error {
	if r.OrderID == "" {
		return ErrMissingOrderID
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.Currency != "" && !currencyCode.MatchString(r.Currency) {
		return ErrInvalidCurrency
	}
	if _, err := ToMinorUnits(r.Amount); err != nil {
		return err
	}
	return nil
}

// ToMinorUnits converts 250.50 to 25050. Amounts that do not land on a
// whole minor unit are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrAmountPrecision, amount.String())
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountTooLarge, amount.String())
	}
	return minor.IntPart(), nil
}
