package dto

type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ServiceInfoResponse struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Paths   map[string]string `json:"paths"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
