package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/uniticket/internal/domain"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "ticket_status", func(fl validator.FieldLevel) bool {
		return domain.TicketStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "ticket_priority", func(fl validator.FieldLevel) bool {
		return domain.TicketPriority(fl.Field().String()).Valid()
	})
	mustRegister(v, "ticket_category", func(fl validator.FieldLevel) bool {
		return domain.TicketCategory(fl.Field().String()).Valid()
	})
	mustRegister(v, "user_role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
	mustRegister(v, "iso8601", func(fl validator.FieldLevel) bool {
		_, err := parseISO8601(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// validateStruct runs the tag rules on input and converts failures into a
// field-level VALIDATION_FAILED error.
func validateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewInternalError(err)
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	return apperrors.NewFieldValidationError(fields)
}

// fieldPath drops the struct name prefix so nested paths read like the
// JSON document, e.g. attachments[0].url.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s cannot have more than %s entries", name, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s characters", name, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "email":
		return "Please provide a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "ticket_status":
		return "Invalid status"
	case "ticket_priority":
		return "Invalid priority"
	case "ticket_category":
		return "Invalid category"
	case "user_role":
		return "Invalid role"
	case "iso8601":
		return fmt.Sprintf("%s must be a valid ISO 8601 date", name)
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", name)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", name)
	}
	return fmt.Sprintf("%s is invalid", name)
}

var iso8601Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseISO8601 accepts full timestamps and bare dates. Values without a
// zone are read as UTC.
func parseISO8601(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 value %q", value)
}

func singleFieldError(field, message string) error {
	return apperrors.NewFieldValidationError([]apperrors.FieldError{{Field: field, Message: message}})
}
