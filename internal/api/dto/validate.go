package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var messages = map[string]string{
	"required": "The field '%s' is required.",
	"email":    "The field '%s' must be a valid email address.",
	"min":      "The field '%s' must be at least %s characters long.",
	"max":      "The field '%s' must be no longer than %s characters.",
	"len":      "The field '%s' must be exactly %s characters long.",
	"numeric":  "The field '%s' must be numeric.",
}

// Validate checks s against its validate tags. Failures come back as a
// VALIDATION_FAILED domain error keyed by json field name.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = message(fe)
	}
	return apperrors.NewValidationError("validation failed", details)
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", fe.Field(), fe.Tag())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(msg, fe.Field())
}
