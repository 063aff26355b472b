package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/hello-stack/app"
	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/function"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	lambdaCmdDescription = `The lambda command starts the function as an AWS Lambda runtime
interface client. This is the entrypoint of the deployed
function package.

The command will start the AWS runtime interface client and
blocks indefinitely, processing incoming AWS Lambda events.`
	lambdaCmd = &cli.Command{
		Name:        "lambda",
		Usage:       "Run the AWS Lambda handler",
		Description: lambdaCmdDescription,
		Before:      loadConfig,
		Action:      lambdaAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "lambda-proxy-source",
				Usage:    "the source of the AWS Lambda event. Options: DIRECT, API_GW_V1, API_GW_V2, ALB.",
				EnvVars:  []string{"LAMBDA_PROXY_SOURCE"},
				Category: "lambda",
			},
		},
	}
)

func lambdaAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	shell, err := app.New(ctx)
	if err != nil {
		return err
	}

	log.Info("starting AWS Lambda handler")

	return shell.Run(ctx.Context, function.Module(cfg.Lambda))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, lambdaCmd)
}
