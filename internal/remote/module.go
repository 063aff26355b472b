package remote

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

type RegistryParams struct {
	fx.In

	AWS   aws.Config
	Stack *stack.Stack
	Log   *zap.Logger
}

// NewRegistry registers the deployed functions of the stack, so the local
// gateway can front them.
func NewRegistry(params RegistryParams) (*execution.Registry, error) {
	client := lambda.NewFromConfig(params.AWS)
	spec := params.Stack.Function()

	registry := execution.NewRegistry()
	if err := registry.Register(string(spec.ID), NewInvoker(client, spec.Name, params.Log)); err != nil {
		return nil, err
	}

	return registry, nil
}

// Module provides a registry of the deployed functions.
func Module() fx.Option {
	return fx.Module(
		"remote",
		// rename logger for module
		logging.DecorateLogger("remote"),
		// provide registry
		fx.Provide(NewRegistry),
	)
}
