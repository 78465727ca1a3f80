package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// New returns a validator with the service's custom tags registered:
// notblank rejects whitespace-only strings, promocode checks the code alphabet after normalization.
func New() *validator.Validate {
	v := validator.New()

	// Report json names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return strings.TrimSpace(str) != ""
	})

	_ = v.RegisterValidation("promocode", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return promoCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(str)))
	})

	return v
}

// FormatError turns the first field error into a client-facing message.
func FormatError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "promocode":
		return "invalid request: " + field + " must be 3-32 characters of A-Z, 0-9, _ or -"
	case "gte", "min":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "lte", "max":
		return "invalid request: " + field + " must be at most " + fe.Param()
	case "oneof":
		return "invalid request: " + field + " must be one of " + fe.Param()
	case "uuid":
		return "invalid request: " + field + " must be a valid uuid"
	case "excluded_with":
		return "invalid request: " + field + " cannot be combined with " + lowerFirst(fe.Param())
	}
	return "invalid request: " + field + " is invalid"
}

// lowerFirst maps a Go field name in a tag param to its json name.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
