package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the template field constraints. Call Normalize first.
func (t Template) Validate() error {
	verr := &ValidationError{}
	if err := validate.Struct(t); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate template: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), describe(fe))
		}
	}
	if !t.Amount.IsPositive() {
		verr.Add("amount", ErrInvalidAmount.Error()+": must be greater than zero")
	}
	return verr.OrNil()
}

// ValidateActualAmount rejects explicit paid/reconciled amounts that are not positive.
func ValidateActualAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return NewValidationError("amountActual", ErrInvalidAmount.Error()+": must be greater than zero")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	if fe.Field() == "dayOfMonth" {
		return ErrInvalidDay.Error() + ": must be between 1 and 31"
	}
	switch fe.Tag() {
	case "required":
		if fe.Field() == "description" {
			return ErrEmptyDescription.Error()
		}
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "iso4217":
		return "must be an ISO 4217 currency code"
	}
	return "failed " + fe.Tag() + " check"
}
