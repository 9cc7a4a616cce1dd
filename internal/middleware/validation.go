package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "finsheet/internal/errors"
)

// tickerPattern accepts NSE/BSE style symbols such as TCS, M&M, BAJAJ-AUTO or 500325
var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&.\-]{0,19}$`)

// Validator validates request structs with go-playground tags plus the
// "ticker" rule, reporting failures as a 400 with per-field messages
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the custom rules registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ticker", isValidTicker)

	// Report fields by the name the client used
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "schema"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	return &Validator{validate: v}
}

// ValidateStruct validates s and returns an *apperrors.APIError listing every failing field
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.InvalidRequestWithError(err)
	}

	out := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apperrors.NewValidationErrors(out)
}

// ValidTicker reports whether symbol passes the ticker rule
func ValidTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "dive":
		return fmt.Sprintf("%s contains an invalid entry", field)
	case "ticker":
		return fmt.Sprintf("%s must be a ticker symbol (A-Z, 0-9, &, . or -, at most 20 characters)", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isValidTicker(fl validator.FieldLevel) bool {
	return ValidTicker(fl.Field().String())
}
