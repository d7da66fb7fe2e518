package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wikirace/wikipath/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Error codes returned in response bodies.
const (
	codeValidationError    = "VALIDATION_ERROR"
	codeInvalidContentType = "INVALID_CONTENT_TYPE"
	codeInvalidPage        = "INVALID_PAGE"
	codeCacheError         = "CACHE_ERROR"
	codeUpstreamAPIError   = "UPSTREAM_API_ERROR"
	codeInternalError      = "INTERNAL_ERROR"
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// requireJSON enforces an application/json request body.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeError(w, http.StatusBadRequest, "Content-Type must be application/json", codeInvalidContentType)
		return false
	}
	return true
}

// readJSON decodes and validates a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", codeValidationError)
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body", codeValidationError)
		}
		return v, false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), codeValidationError)
		return v, false
	}
	return v, true
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag()+" validation")
	}
	return strings.Join(parts, "; ")
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeDomainError maps domain error kinds onto HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidPage)
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "cache backend unavailable", codeCacheError)
	case errors.Is(err, domain.ErrUpstreamAPI):
		writeError(w, http.StatusServiceUnavailable, "upstream API unavailable", codeUpstreamAPIError)
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", codeInternalError)
	}
}
