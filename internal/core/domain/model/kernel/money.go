package kernel

import (
	"fmt"
	"math"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

// ErrMoneyIsNotConstructed is returned when validating a zero-value Money.
var ErrMoneyIsNotConstructed = errs.NewValueIsRequiredError("Money must be created via NewMoney")

// Money is a non-negative amount in minor currency units (cents). Currency
// conversion and bonus arithmetic belong to other services; the order only
// carries the totals it was created with.
type Money struct { //nolint:recvcheck //using for validation
	amount int64

	guard guard.ConstructorGuard
}

// NewMoney validates that amount is not negative.
func NewMoney(amount int64) (Money, error) {
	if amount < 0 {
		return Money{}, errs.NewValueIsOutOfRangeError("amount", amount, 0, int64(math.MaxInt64))
	}
	return Money{amount: amount, guard: guard.NewConstructorGuard()}, nil
}

// Amount returns the value in minor units.
func (m Money) Amount() int64 {
	return m.amount
}

// Add returns the sum of both amounts, failing on overflow.
func (m Money) Add(other Money) (Money, error) {
	if err := validateAll(m, other); err != nil {
		return Money{}, err
	}
	if other.amount > math.MaxInt64-m.amount {
		return Money{}, errs.NewValueIsInvalidErrorWithCause(
			"amount",
			fmt.Errorf("%d + %d overflows", m.amount, other.amount),
		)
	}
	return NewMoney(m.amount + other.amount)
}

// IsEqual compares amounts.
func (m Money) IsEqual(other Money) bool {
	return m.amount == other.amount
}

// Validate rejects a Money that was not built by NewMoney.
func (m Money) Validate() error {
	return m.guard.Validate(ErrMoneyIsNotConstructed)
}

// String renders the amount with two decimal places.
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", m.amount/100, m.amount%100)
}

func validateAll(values ...Money) error {
	for _, v := range values {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
