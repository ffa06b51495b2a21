package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainError(t *testing.T) {
	forbidden := NewForbidden("Access denied")
	wrapped := fmt.Errorf("update ticket: %w", forbidden)
	plain := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", forbidden, CodeForbidden, http.StatusForbidden},
		{"wrapped domain error is unwrapped", wrapped, CodeForbidden, http.StatusForbidden},
		{"plain error becomes internal", plain, CodeInternal, http.StatusInternalServerError},
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"conflict", NewConflict("taken", nil), CodeConflict, http.StatusConflict},
		{"rate limited", NewRateLimited(3), CodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", got.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestToDomainErrorNil(t *testing.T) {
	if got := ToDomainError(nil); got != nil {
		t.Errorf("ToDomainError(nil) = %v, want nil", got)
	}
	if got := MapError(nil); got != nil {
		t.Errorf("MapError(nil) = %v, want nil", got)
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	domainErr := ToDomainError(NewInternalError(cause))
	if domainErr.Message != "internal server error" {
		t.Errorf("Message = %q, want generic message", domainErr.Message)
	}
	if !errors.Is(domainErr, cause) {
		t.Errorf("internal error should keep cause for server-side logging")
	}
}

func TestFieldValidationError(t *testing.T) {
	err := NewFieldValidationError([]FieldError{{Field: "title", Message: "title is required"}})
	if !IsValidation(err) {
		t.Fatalf("IsValidation = false, want true")
	}
	domainErr := ToDomainError(err)
	if len(domainErr.Fields) != 1 || domainErr.Fields[0].Field != "title" {
		t.Errorf("Fields = %+v, want one title entry", domainErr.Fields)
	}
}

func TestHasCodeHelpers(t *testing.T) {
	if !IsNotFound(NewNotFound("message", nil)) {
		t.Error("IsNotFound should match NOT_FOUND")
	}
	if IsForbidden(NewNotFound("message", nil)) {
		t.Error("IsForbidden should not match NOT_FOUND")
	}
	if IsForbidden(errors.New("boom")) {
		t.Error("IsForbidden should not match plain errors")
	}
}
