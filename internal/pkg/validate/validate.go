// Package validate wraps go-playground/validator with human-readable messages
// and typed errors. It is shared by the stores (caller input), the backend
// adapters (rows coming off the wire) and the HTTP layer (request bodies).
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// Error lists every failed field. It unwraps to domain.ErrInvalidInput or
// domain.ErrInvalidPayload depending on where validation happened.
type Error struct {
	Fields []string
	kind   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, strings.Join(e.Fields, "; "))
}

func (e *Error) Unwrap() error { return e.kind }

// Validator is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that reports json field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Validator{v: v}
}

var std = New()

// Input validates caller-supplied data with the shared validator.
func Input(i any) error { return std.Input(i) }

// Payload validates a decoded backend row with the shared validator.
func Payload(i any) error { return std.Payload(i) }

// Input validates caller-supplied data.
func (vv *Validator) Input(i any) error {
	return vv.check(i, domain.ErrInvalidInput)
}

// Payload validates data decoded from the backend.
func (vv *Validator) Payload(i any) error {
	return vv.check(i, domain.ErrInvalidPayload)
}

func (vv *Validator) check(i any, kind error) error {
	err := vv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return &Error{Fields: msgs, kind: kind}
	}
	return fmt.Errorf("%w: %v", kind, err)
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
