package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"familytree/internal/apperr"
)

// maxJSONBody caps request bodies decoded by decodeJSON
const maxJSONBody = 1 << 20

var (
	errBadJSON       = apperr.New(apperr.CodeInvalid, ErrInvalidRequestBody, "بيانات الطلب غير صالحة")
	errRouteNotFound = apperr.New(apperr.CodeNotFound, "Route not found", "المسار غير موجود")
)

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Meta    any  `json:"meta,omitempty"`
}

type errorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	ErrorAr string      `json:"errorAr"`
	Code    apperr.Code `json:"code"`
}

// listMeta accompanies paged listings
type listMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, data any, meta listMeta) {
	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: data, Meta: meta})
}

// respondWithError renders err as a bilingual error body. Errors without a
// code are logged and reported as internal.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	status := apperr.HTTPStatus(ae.Code)
	if ae.Code == apperr.CodeInternal {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   ae.Message,
		ErrorAr: ae.MessageAr,
		Code:    ae.Code,
	})
}

// decodeJSON reads a single JSON object from the request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(err, apperr.CodeTooLarge, "Request body is too large", "حجم الطلب كبير جداً")
		}
		return apperr.Wrap(err, errBadJSON.Code, errBadJSON.Message, errBadJSON.MessageAr)
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return errBadJSON
	}
	return nil
}
