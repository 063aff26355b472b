package app

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/function"
	"github.com/lambda-feedback/hello-stack/internal/deploy"
	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/internal/shell"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide stack config
		fx.Supply(config.Stack),
		// provide stack
		fx.Provide(stack.New),
		// provide the activated deployment
		fx.Provide(NewDeployment),
	)

	return shell.New(log, sharedModule), nil
}

// NewDeployment returns the deployment of s.
func NewDeployment(s *stack.Stack) stack.Deployment {
	return s.Deployment()
}

// NewAWSConfig loads the shared AWS configuration for the stack's region.
func NewAWSConfig(ctx context.Context, cfg stack.Config) (aws.Config, error) {
	return deploy.LoadAWSConfig(ctx, cfg.Region)
}

type FunctionDefParams struct {
	fx.In

	Stack  *stack.Stack
	Logger *zap.Logger
}

// NewFunctionDef describes the compute unit of the stack to the local
// execution environment. Every sandbox gets its own handler.
func NewFunctionDef(params FunctionDefParams) execution.FunctionDefResult {
	spec := params.Stack.Function()
	cfg := params.Stack.Config()

	account := cfg.Account
	if account == "" {
		account = stack.LocalAccount
	}

	log := params.Logger.Named("function").With(zap.String("function", spec.Name))

	return execution.AsFunctionDef(execution.FunctionDef{
		ID:         string(spec.ID),
		Name:       spec.Name,
		Arn:        spec.Arn(cfg.Region, account),
		MemorySize: spec.MemorySize,
		Timeout:    spec.Timeout,
		Handler: func() lambda.Handler {
			return function.NewLambdaHandler(function.NewHandler(function.HandlerParams{
				Logger: log,
			}))
		},
	})
}

// LocalFunctions hosts the functions of the stack in-process.
func LocalFunctions(config execution.Config) fx.Option {
	return fx.Options(
		fx.Provide(NewFunctionDef),
		execution.Module(config),
	)
}
