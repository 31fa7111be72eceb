// Package validation validates request payloads with validator/v10 and
// converts failures into apperr validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

// Validator wraps go-playground/validator.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks s and returns an *apperr.Error of kind Validation on failure.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("invalid request").Wrap(err)
	}

	missing := make([]string, 0, len(fieldErrs))
	invalid := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fmt.Sprintf("%s %s", fe.Field(), friendly(fe)))
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	if len(missing) > 0 {
		return apperr.Validation("Please provide all fields: " + strings.Join(missing, ", "))
	}
	return apperr.Validation(strings.Join(invalid, "; "))
}

// Var checks a single value against tag and reports failures under field.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid " + field).Wrap(err)
	}
	return apperr.Validation(fmt.Sprintf("%s %s", field, friendly(fieldErrs[0])))
}

func friendly(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
