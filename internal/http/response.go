package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"riskscreen-backend/internal/services"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError renders a ServiceError with its status; anything else is a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if se, ok := services.AsServiceError(err); ok {
		WriteError(w, se.Status(), se.Message)
		return
	}
	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return false
	}
	return true
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
