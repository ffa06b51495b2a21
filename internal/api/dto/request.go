package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

// Optional distinguishes an absent JSON field from an explicit null.
// Set is true whenever the key was present; Null is true for `null`.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// DecodeStrict decodes body into dst, rejecting unknown fields and trailing
// data. An empty body decodes as an empty object.
func DecodeStrict(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("Request body must contain a single JSON object", nil)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return apperrors.NewFieldValidationError([]apperrors.FieldError{{
			Field:   field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
		}})
	case errors.As(err, &syntaxErr):
		return apperrors.NewValidationError("Malformed JSON body", map[string]any{"offset": syntaxErr.Offset})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperrors.NewFieldValidationError([]apperrors.FieldError{{
			Field:   field,
			Message: "unknown field",
		}})
	default:
		return apperrors.NewValidationError("Invalid request body", nil)
	}
}
