package utils

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
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names, the names API clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ValidateStruct checks s against its `validate` tags and describes the first
// failing field.
func ValidateStruct(s any) error {
	return describe(validate.Struct(s))
}

// ValidateVar checks a single value against tag.
func ValidateVar(field any, tag string) error {
	return describe(validate.Var(field, tag))
}

func describe(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	name := fe.Field()
	if name == "" {
		name = "value"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "email":
		return fmt.Errorf("%s is invalid", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Errorf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Errorf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Errorf("%s exceeds %s", name, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be %s or more", name, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, fe.Param())
	case "unique":
		return fmt.Errorf("%s must be unique", name)
	default:
		return fmt.Errorf("%s failed the %q check", name, fe.Tag())
	}
}
