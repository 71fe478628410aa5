package shared

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Required trims value and fails when it is empty.
func Required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return value, nil
}

// OptionalEmail trims and lower-cases email, validating it when present.
func OptionalEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", fmt.Errorf("%w: email %q is not valid", ErrValidation, email)
	}
	return email, nil
}
