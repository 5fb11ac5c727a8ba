package middleware

import (
	"customer-service/internal/api/handler/dto"
	"encoding/json"
	"net/http"
)

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}
