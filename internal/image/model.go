// Package image manages image records, their blobs, and the lifecycle that keeps
// the two stores in step.
package image

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Image is the persisted metadata for one uploaded image.
type Image struct {
	ID     string `json:"id" validate:"required"`
	URL    string `json:"url" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

// ViewMode selects which fields a serialized image exposes.
type ViewMode int

const (
	// ViewPublic omits private fields. It is the only mode ever returned to API clients.
	ViewPublic ViewMode = iota
	// ViewAll includes private fields.
	ViewAll
)

// View is the serialized form of an Image.
type View struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	UserID string `json:"userId,omitempty"`
}

// View serializes img. In ViewPublic the private userId is left out of the output.
func (img *Image) View(mode ViewMode) View {
	v := View{ID: img.ID, URL: img.URL}
	if mode == ViewAll {
		v.UserID = img.UserID
	}
	return v
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every field that failed validation.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// IsValidationError reports whether err carries field errors and returns them.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Validator checks images against the struct rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns the failed rules in field declaration order, or nil when img is valid.
// A non-nil error means validation itself could not run.
func (v *Validator) Validate(ctx context.Context, img *Image) ([]FieldError, error) {
	err := v.validate.StructCtx(ctx, img)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate image: %w", err)
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required!"
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
