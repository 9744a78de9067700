package content

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Msg      string `json:"msg"`
	Param    string `json:"param"`
	Value    any    `json:"value,omitempty"`
	Location string `json:"location"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Param+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Invalid builds a single-field ValidationError.
func Invalid(param, location, msg string, value any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Msg: msg, Param: param, Value: value, Location: location}}}
}

// secretParams are never echoed back in a FieldError.
var secretParams = map[string]struct{}{"password": {}}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates input and converts validator failures into a
// ValidationError located in the request body.
func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		param := paramPath(fe.Namespace())
		fieldErr := FieldError{Msg: message(fe), Param: param, Location: "body"}
		if _, secret := secretParams[param]; !secret {
			fieldErr.Value = fe.Value()
		}
		out.Fields = append(out.Fields, fieldErr)
	}
	return out
}

// paramPath drops the struct name from a validator namespace, so
// "NewUser.contact[0].info" becomes "contact[0].info".
func paramPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s entries.", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("%s must have at most %s entries.", name, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", name)
	case "url":
		return fmt.Sprintf("%s must be a valid URL.", name)
	case "alphanumunicode":
		return fmt.Sprintf("%s may only contain letters and digits.", name)
	default:
		return fmt.Sprintf("%s is invalid.", name)
	}
}
