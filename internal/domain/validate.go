package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a client-side input problem found before any
// network call was attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// ValidateCurrency requires a three letter code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return &ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
		}
	}
	return nil
}

// ValidateRecipient requires a non-blank recipient. A recipient given as an
// email address must parse as one.
func ValidateRecipient(recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return &ValidationError{Field: "recipient", Reason: "is required"}
	}
	if strings.Contains(recipient, "@") {
		if _, err := mail.ParseAddress(recipient); err != nil {
			return &ValidationError{Field: "recipient", Reason: "is not a valid email address"}
		}
	}
	return nil
}

// Validate checks a draft the same way a send request is checked.
func (d PaymentDraft) Validate() error {
	if err := ValidateRecipient(d.Recipient); err != nil {
		return err
	}
	if err := ValidateAmount(d.Amount); err != nil {
		return err
	}
	return ValidateCurrency(d.Currency)
}
