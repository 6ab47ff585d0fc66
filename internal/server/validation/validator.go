// Package validation validates request structs with go-playground/validator
// and reports the first failing field in the API's error shape.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// emailPattern is deliberately loose: something@something.something.
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// Error describes one invalid field. It matches common.ErrValidation.
type Error struct {
	// Param is the JSON name of the offending field.
	Param   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return common.ErrValidation }

// Invalid builds an Error for param outside of struct validation.
func Invalid(param, message string) error {
	return &Error{Param: param, Message: message}
}

// GetValidator returns the shared validator. It reports fields by their json
// names and knows the "loose_email" tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "query"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})

		_ = validate.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct returns nil or an *Error for the first failing field.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &Error{Param: fe.Field(), Message: translateError(fe)}
}

var errorMessageTemplates = map[string]string{
	"required":    "%s is required",
	"loose_email": "%s must be a valid email address",
	"email":       "%s must be a valid email address",
	"url":         "%s must be a valid URL",
	"uuid":        "%s must be a valid id",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
