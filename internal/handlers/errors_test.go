package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"familytree/internal/apperr"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRespondWithErrorWritesCodedError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperr.Code
	}{
		{"not found", apperr.New(apperr.CodeNotFound, "Member not found", "العضو غير موجود"), http.StatusNotFound, apperr.CodeNotFound},
		{"conflict", apperr.New(apperr.CodeConflict, "Stale", "قديم"), http.StatusConflict, apperr.CodeConflict},
		{"disabled", apperr.New(apperr.CodeDisabled, "Off", "معطل"), http.StatusForbidden, apperr.CodeDisabled},
		{"too large", apperr.New(apperr.CodeTooLarge, "Big", "كبير"), http.StatusRequestEntityTooLarge, apperr.CodeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("content type = %q", ct)
			}
			body := decodeError(t, rec)
			if body.Success || body.Code != tt.wantCode || body.Error == "" || body.ErrorAr == "" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestRespondWithErrorHidesAndLogsInternalErrors(t *testing.T) {
	var buf bytes.Buffer
	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(original)

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/api/admin/members", nil), errors.New("boom: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeError(t, rec)
	if strings.Contains(body.Error, "boom") {
		t.Errorf("internal detail leaked to client: %q", body.Error)
	}
	if body.Code != apperr.CodeInternal {
		t.Errorf("code = %s", body.Code)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "boom") || !strings.Contains(logOutput, "/api/admin/members") {
		t.Fatalf("expected log to include error and path, got %q", logOutput)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode apperr.Code
	}{
		{"valid", `{"name":"x"}`, ""},
		{"malformed", `{"name":`, apperr.CodeInvalid},
		{"trailing data", `{"name":"x"} {"name":"y"}`, apperr.CodeInvalid},
		{"too large", `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`, apperr.CodeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Name string `json:"name"`
			}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantCode == "" {
				if err != nil || dst.Name != "x" {
					t.Fatalf("decodeJSON = %v, name %q", err, dst.Name)
				}
				return
			}
			if !apperr.IsCode(err, tt.wantCode) {
				t.Fatalf("decodeJSON error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
