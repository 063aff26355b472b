package function

import (
	"go.uber.org/fx"

	"github.com/lambda-feedback/hello-stack/util/logging"
)

// HandlerModule provides the compute unit.
func HandlerModule() fx.Option {
	return fx.Module(
		"function",
		// rename logger for module
		logging.DecorateLogger("function"),
		// provide handler
		fx.Provide(NewHandler),
	)
}

// Module serves the compute unit through the Lambda runtime.
func Module(config Config) fx.Option {
	return fx.Module(
		"lambda",
		// provide lambda config
		fx.Supply(config),
		// provide handler
		HandlerModule(),
		// provide runtime
		fx.Provide(NewLifecycleRuntime),
		// invoke runtime
		fx.Invoke(func(*Runtime) {}),
	)
}
