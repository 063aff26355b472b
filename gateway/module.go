package gateway

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/internal/server"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

type GatewayParams struct {
	fx.In

	Config     Config
	Deployment stack.Deployment
	Registry   *execution.Registry
	Log        *zap.Logger
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	return New(Params{
		Config:     params.Config,
		Deployment: params.Deployment,
		Functions:  params.Registry,
		Log:        params.Log,
	})
}

// NewRoute mounts the gateway on the http server.
func NewRoute(g *Gateway) server.HttpHandlerResult {
	return server.AsHttpHandler("/", g)
}

func Module(config Config) fx.Option {
	return fx.Module(
		"gateway",
		// provide gateway config
		fx.Supply(config),
		// rename logger for module
		logging.DecorateLogger("gateway"),
		// provide gateway
		fx.Provide(NewGateway),
		// mount gateway
		fx.Provide(NewRoute),
	)
}
