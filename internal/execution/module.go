package execution

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/util/logging"
)

// FunctionDefResult provides a function definition to the execution module.
type FunctionDefResult struct {
	fx.Out

	Def FunctionDef `group:"functions"`
}

func AsFunctionDef(def FunctionDef) FunctionDefResult {
	return FunctionDefResult{Def: def}
}

type RegistryParams struct {
	fx.In

	Config Config
	Defs   []FunctionDef `group:"functions"`
	Log    *zap.Logger
}

// NewLifecycleRegistry hosts every provided function and registers it. The
// functions are shut down when the application stops.
func NewLifecycleRegistry(params RegistryParams, lc fx.Lifecycle) (*Registry, error) {
	registry := NewRegistry()

	var functions []*Function
	for _, def := range params.Defs {
		fn, err := NewFunction(FunctionParams{
			Config: params.Config,
			Def:    def,
			Log:    params.Log,
		})
		if err != nil {
			return nil, err
		}

		if err := registry.Register(def.ID, fn); err != nil {
			return nil, err
		}

		functions = append(functions, fn)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			for _, fn := range functions {
				fn.Shutdown()
			}
			return nil
		},
	})

	return registry, nil
}

// Module provides the local execution environment.
func Module(config Config) fx.Option {
	return fx.Module(
		"execution",
		// provide execution config
		fx.Supply(config),
		// rename logger for module
		logging.DecorateLogger("execution"),
		// provide registry
		fx.Provide(NewLifecycleRegistry),
	)
}
