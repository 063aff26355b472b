package function

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// httpEvent is the event built from a plain HTTP request.
type httpEvent struct {
	HTTPMethod            string              `json:"httpMethod"`
	Path                  string              `json:"path"`
	Headers               map[string][]string `json:"multiValueHeaders,omitempty"`
	QueryStringParameters map[string][]string `json:"multiValueQueryStringParameters,omitempty"`
	Body                  string              `json:"body"`
}

// NewHTTPHandler exposes h as an http.Handler. The request is turned into an
// event and the response is written with the unit's status code and body.
func NewHTTPHandler(h *Handler) http.Handler {
	return &httpHandler{handler: h}
}

type httpHandler struct {
	handler *Handler
}

func (s *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := s.handler.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	raw, err := json.Marshal(httpEvent{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               r.Header,
		QueryStringParameters: r.URL.Query(),
		Body:                  string(payload),
	})
	if err != nil {
		log.Debug("failed to encode event", zap.Error(err))
		http.Error(w, "failed to encode event", http.StatusInternalServerError)
		return
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		http.Error(w, "failed to decode event", http.StatusInternalServerError)
		return
	}

	response, err := s.handler.Handle(r.Context(), event)
	if err != nil {
		log.Error("handler failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	if _, err := io.WriteString(w, response.Body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}
