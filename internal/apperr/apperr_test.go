package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromKeepsCodedErrors(t *testing.T) {
	coded := New(CodeConflict, "Version conflict", "تعارض في الإصدار")
	wrapped := fmt.Errorf("update member: %w", coded)

	got := From(wrapped)
	if got != coded {
		t.Fatalf("From() = %v, want original coded error", got)
	}
	if HTTPStatus(got.Code) != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want 409", HTTPStatus(got.Code))
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	got := From(cause)

	if got.Code != CodeInternal {
		t.Errorf("Code = %s, want internal", got.Code)
	}
	if !errors.Is(got, cause) {
		t.Error("internal error should unwrap to the cause")
	}
	if got.MessageAr == "" {
		t.Error("internal error should carry an Arabic message")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(errors.New("inner"), CodeNotFound, "Member not found", "العضو غير موجود"))
	if !IsCode(err, CodeNotFound) {
		t.Error("IsCode should find not_found through wrapping")
	}
	if IsCode(err, CodeConflict) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), CodeNotFound) {
		t.Error("plain errors have no code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalid, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeDisabled, http.StatusForbidden},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeTooLarge, http.StatusRequestEntityTooLarge},
		{CodeInternal, http.StatusInternalServerError},
		{Code("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := HTTPStatus(tt.code); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
