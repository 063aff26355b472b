package gateway

import (
	"encoding/json"
	"net/http"
)

// gatewayResponse is an error response generated by the gateway itself,
// without involving the function.
type gatewayResponse struct {
	Status  int
	Message string
	Type    string
}

var (
	responseMissingToken = gatewayResponse{http.StatusForbidden, "Missing Authentication Token", "MissingAuthenticationTokenException"}
	responseForbidden    = gatewayResponse{http.StatusForbidden, "Forbidden", "AccessDeniedException"}
	responseThrottled    = gatewayResponse{http.StatusTooManyRequests, "Too Many Requests", "TooManyRequestsException"}
	responseBadGateway   = gatewayResponse{http.StatusBadGateway, "Internal server error", "InternalServerErrorException"}
	responseTimeout      = gatewayResponse{http.StatusGatewayTimeout, "Endpoint request timed out", "IntegrationTimeoutException"}
)

func (g gatewayResponse) write(w http.ResponseWriter) {
	body, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{g.Message})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("x-amzn-ErrorType", g.Type)
	w.WriteHeader(g.Status)
	w.Write(body)
}
