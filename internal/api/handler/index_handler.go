package handler

import (
	"customer-service/internal/api/handler/dto"
	"net/http"
)

const (
	ServiceName    = "Customer REST API Service"
	ServiceVersion = "1.0"
)

type IndexHandler struct {
	paths map[string]string
}

func NewIndexHandler() *IndexHandler {
	return &IndexHandler{
		paths: map[string]string{
			"customers": "/customers",
			"health":    "/health",
			"docs":      "/swagger/index.html",
		},
	}
}

// Index handles GET /
// @Summary Service information
// @Tags Service
// @Produce json
// @Success 200 {object} dto.ServiceInfoResponse
// @Router / [get]
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.ServiceInfoResponse{
		Name:    ServiceName,
		Version: ServiceVersion,
		Paths:   h.paths,
	})
}

// Health handles GET /health
// @Summary Liveness probe
// @Tags Service
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.HealthResponse{Status: "OK"})
}
