package handler

import (
	"bytes"
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/pkg/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const jsonMediaType = "application/json"

// decodeJSON reads a single JSON object into v. Anything that is not an object,
// including an empty body, null or data trailing the object, is reported as a malformed body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperrors.NewValidationError("", "malformed body: request body is empty")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return apperrors.NewValidationError("", fmt.Sprintf("malformed body: %v", err))
	}
	if dec.More() {
		return apperrors.NewValidationError("", "malformed body: unexpected data after JSON object")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return apperrors.NewValidationError("", "malformed body: expected a JSON object")
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperrors.NewValidationError(typeErr.Field, fmt.Sprintf("field %s must be of type %s", typeErr.Field, typeErr.Type))
		}
		return apperrors.NewValidationError("", fmt.Sprintf("malformed body: %v", err))
	}
	return nil
}

// requireJSON accepts application/json with any parameters, e.g. a charset.
func requireJSON(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != jsonMediaType {
		return apperrors.NewUnsupportedMediaTypeError(jsonMediaType)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"status":500,"error":"Internal Server Error","message":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", jsonMediaType)
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Error(), validationError.Field
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	case errors.Is(err, apperrors.ErrUnsupportedMediaType):
		status, message = http.StatusUnsupportedMediaType, "Content-Type must be application/json"
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondStatus(w, status, message, field)
}

func respondStatus(w http.ResponseWriter, status int, message, field string) {
	respondJSON(w, status, dto.ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
		Field:   field,
	})
}

// NotFound and MethodNotAllowed replace chi's plain-text defaults.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, http.StatusNotFound, fmt.Sprintf("The requested URL %s was not found on the server.", r.URL.Path), "")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, http.StatusMethodNotAllowed, fmt.Sprintf("The method %s is not allowed for the requested URL.", r.Method), "")
}

func getCustomerIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "customerID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: customerID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid customerID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}
