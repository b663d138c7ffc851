package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/itdesk-io/itdesk/internal/models"
)

// validate checks request structs against their binding tags. Handlers get the same
// rules from gin; the service runs them again for the CLI and seed paths.
var validate = NewValidator()

// NewValidator returns a validator that reads "binding" tags and reports fields by
// their form or json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	ConfigureValidator(v)
	return v
}

// ConfigureValidator makes v report form field names, so gin's engine and ours produce
// the same keys.
func ConfigureValidator(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json", "yaml"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// FieldErrors turns validator output into per-field messages. It reports false for
// errors that did not come from a validator.
func FieldErrors(err error) (*models.ValidationError, bool) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil, false
	}
	verr := models.NewValidationError()
	for _, fe := range errs {
		field, _, _ := strings.Cut(fe.Field(), "[")
		verr.Add(field, fieldMessage(fe))
	}
	return verr, true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "email":
		return msgInvalidEmail
	case "oneof":
		return msgInvalidChoice
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return "Enter a valid value."
	}
}

// validateRequest runs the binding rules on req and collects the failures into verr.
func validateRequest(verr *models.ValidationError, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	fields, ok := FieldErrors(err)
	if !ok {
		return err
	}
	for k, msg := range fields.Fields {
		verr.Add(k, msg)
	}
	return nil
}
