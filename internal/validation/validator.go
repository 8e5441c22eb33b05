// Package validation checks decoded request bodies with go-playground's
// validator and turns failures into apperror validation errors.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/book-favorites/internal/apperror"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v        *validator.Validate
	messages map[string]string
}

// New creates a validator that reports fields by their JSON names.
//
// messages maps a JSON field name to the message returned when that field
// fails its "required" rule, e.g. {"bookId": "Book ID required"}. Fields
// without an entry get "<field> is required".
func New(messages map[string]string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Validator{v: v, messages: messages}
}

// Validate validates a struct. The first failing field becomes an
// apperror.ValidationFailed.
//
// A required *string is satisfied by a pointer to "", which is how
// handlers tell an empty comment apart from a missing one.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), v.message(fe))
}

func (v *Validator) message(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		if msg, ok := v.messages[fe.Field()]; ok {
			return msg
		}
		return fe.Field() + " is required"
	}
	switch fe.Tag() {
	case "max":
		return fe.Field() + " must not exceed " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
