package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their wire names (json, then form tag).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
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

	_ = validate.RegisterValidation("decimal", validateDecimal)
	_ = validate.RegisterValidation("username", validateUsername)
}

// plainDecimalPattern admits unsigned positional literals only. Exponent
// forms such as 1e900000000 parse as decimals too, but their expansion is
// unbounded.
var plainDecimalPattern = regexp.MustCompile(`^\d{1,12}(\.\d{1,12})?$`)

// ErrInvalidDecimal is returned by ParseDecimal for anything but a plain literal.
var ErrInvalidDecimal = errors.New("invalid decimal literal")

// ParseDecimal parses a non-negative decimal such as "149.90" with bounded
// digit counts.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !plainDecimalPattern.MatchString(raw) {
		return decimal.Decimal{}, ErrInvalidDecimal
	}
	return decimal.NewFromString(raw)
}

// validateDecimal accepts strings that ParseDecimal accepts. The optional
// param caps the number of fractional digits, e.g. decimal=2.
func validateDecimal(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	d, err := ParseDecimal(raw)
	if err != nil {
		return false
	}
	if param := fl.Param(); param != "" {
		var places int32
		if _, err := fmt.Sscanf(param, "%d", &places); err != nil {
			return false
		}
		return d.Equal(d.Truncate(places))
	}
	return true
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// ErrMalformedBody is returned when the request body is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errs
}

// FieldErrors converts a field→message map into a stable, sorted slice.
func FieldErrors(fields map[string]string) []ValidationError {
	errs := make([]ValidationError, 0, len(fields))
	for field, message := range fields {
		errs = append(errs, ValidationError{Field: field, Message: message})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "oneof":
		return "Value must be one of: " + e.Param()
	case "decimal":
		if e.Param() != "" {
			return "Must be a non-negative number with at most " + e.Param() + " decimal places"
		}
		return "Must be a non-negative number"
	case "username":
		return "Only letters, digits and @/./+/-/_ are allowed"
	default:
		return "Invalid value"
	}
}
