package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	runCmdDescription = `The run command detects the execution environment from the
environment variables and starts the function accordingly.

If the AWS_LAMBDA_RUNTIME_API environment variable is set,
the AWS Lambda runtime handler is started, matching the
behaviour of the lambda command.

Otherwise, the local API is started, matching the behaviour
of the serve command.
	`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Detect execution environment and start the function.",
		Description: runCmdDescription,
		Before:      loadConfig,
		Action:      runAction,
		Flags:       []cli.Flag{},
	}
)

func runAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	if isAWSLambda() {
		log.Info("detected AWS Lambda environment")
		return lambdaAction(ctx)
	}

	log.Info("detected standalone environment")
	return serveAction(ctx)
}

func isAWSLambda() bool {
	env, ok := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return ok && env != ""
}

func init() {
	runCmd.Flags = append(runCmd.Flags, serveCmd.Flags...)
	runCmd.Flags = append(runCmd.Flags, lambdaCmd.Flags...)

	rootApp.Commands = append(rootApp.Commands, runCmd)
}
