package function

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RuntimeParams represents the parameters required for the Lambda runtime.
type RuntimeParams struct {
	fx.In

	// Config is the configuration for the Lambda runtime.
	Config Config

	// Handler is the compute unit served by the runtime.
	Handler *Handler

	// Context is the context for the Lambda runtime.
	Context context.Context

	// Logger is the logger for the Lambda runtime.
	Logger *zap.Logger
}

// Runtime serves the handler through the Lambda runtime interface client.
type Runtime struct {
	config  Config
	handler *Handler
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

// NewRuntime creates a new instance of Runtime with the given parameters.
func NewRuntime(params RuntimeParams) *Runtime {
	ctx, cancel := context.WithCancel(params.Context)

	return &Runtime{
		config:  params.Config,
		handler: params.Handler,
		ctx:     ctx,
		cancel:  cancel,
		log:     params.Logger,
	}
}

// NewLifecycleRuntime creates a new Runtime and attaches lifecycle hooks to
// start and stop it.
func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) *Runtime {
	runtime := NewRuntime(params)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return runtime.Start()
		},
		OnStop: func(context.Context) error {
			runtime.Shutdown()
			return nil
		},
	})
	return runtime
}

// Start starts the runtime interface client in a new goroutine. An error is
// returned if the configured proxy source is unknown.
func (r *Runtime) Start() error {
	handler, err := Entrypoint(r.config.ProxySource, r.handler)
	if err != nil {
		return err
	}

	r.log.Debug("using lambda event proxy", zap.Stringer("proxy_source", r.config.ProxySource))

	go lambda.StartWithOptions(handler, lambda.WithContext(r.ctx))

	return nil
}

// Shutdown cancels the execution of the runtime.
func (r *Runtime) Shutdown() {
	r.cancel()
}

// Entrypoint returns the function the runtime interface client should call
// for events from source.
func Entrypoint(source ProxySource, h *Handler) (any, error) {
	switch source {
	case ProxySourceDirect, "":
		return h.Handle, nil
	case ProxySourceApiGatewayV1:
		return httpadapter.New(NewHTTPHandler(h)).ProxyWithContext, nil
	case ProxySourceApiGatewayV2:
		return httpadapter.NewV2(NewHTTPHandler(h)).ProxyWithContext, nil
	case ProxySourceAlb:
		return httpadapter.NewALB(NewHTTPHandler(h)).ProxyWithContext, nil
	default:
		return nil, fmt.Errorf("invalid proxy source: %s", source)
	}
}

// NewLambdaHandler wraps h in the runtime's typed handler, decoding the
// invocation payload into an Event.
func NewLambdaHandler(h *Handler) lambda.Handler {
	return lambda.NewHandler(h.Handle)
}
