// Package function implements the compute unit: a stateless handler that
// logs the event it receives and answers with a constant greeting.
package function

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/util"
)

// Greeting is the message every invocation responds with.
const Greeting = "Hello World"

// body is the serialized greeting. It is computed once, the response never
// depends on the event.
var body = string(util.Must(json.Marshal(greeting{Message: Greeting})))

type HandlerParams struct {
	fx.In

	Logger *zap.Logger
}

// Handler is the compute unit. It holds no mutable state and is safe for
// concurrent use.
type Handler struct {
	log *zap.Logger
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		log: params.Logger,
	}
}

// Handle logs the event and returns the greeting. It never fails.
func (h *Handler) Handle(ctx context.Context, event Event) (Response, error) {
	h.logEvent(event)

	return Response{
		StatusCode: http.StatusOK,
		Body:       body,
	}, nil
}

func (h *Handler) logEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("failed to serialize event", zap.Error(err))
		return
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, data, "", "  "); err != nil {
		h.log.Info("event", zap.ByteString("event", data))
		return
	}

	h.log.Info("event", zap.ByteString("event", indented.Bytes()))
}
