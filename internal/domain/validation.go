package domain

import (
	"fmt"
	"math"
)

// Validation constants
const (
	MinDescriptionLength = 1
	MaxDescriptionLength = 10

	// MaxAmount keeps amounts in the 32-bit range clients of the API use.
	MaxAmount = math.MaxInt32
)

// ValidateDescription checks the byte length of a transaction description.
func ValidateDescription(desc string) error {
	if len(desc) < MinDescriptionLength {
		return fmt.Errorf("%w: description cannot be empty", ErrInvalidDescription)
	}

	if len(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d bytes", ErrInvalidDescription, MaxDescriptionLength)
	}

	return nil
}

// ValidateAmount checks that an amount is a positive number of cents no
// larger than MaxAmount.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return fmt.Errorf("%w: exceeds %d", ErrInvalidAmount, MaxAmount)
	}
	return nil
}
