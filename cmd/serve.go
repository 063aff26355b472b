package cmd

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/lambda-feedback/hello-stack/app"
	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/gateway"
	"github.com/lambda-feedback/hello-stack/internal/remote"
	"github.com/lambda-feedback/hello-stack/internal/server"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	serveCmdDescription = `The serve command emulates the stack locally. It mounts the
routes of the API on a http server, hosts the function in a
local execution environment and forwards matching requests
to it, enforcing the invoke grants and timeouts of the stack.

With --remote, requests are forwarded to the deployed function
instead.

The command will launch the http server and blocks indefin-
itely, processing incoming http requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start the local API and listen for requests.",
		Description: serveCmdDescription,
		Before:      loadConfig,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
			&cli.IntFlag{
				Name:     "max-concurrency",
				Usage:    "The maximum number of concurrent invocations.",
				Category: "function",
			},
			&cli.BoolFlag{
				Name:     "remote",
				Usage:    "Forward requests to the deployed function.",
				Category: "function",
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
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

	functions := app.LocalFunctions(cfg.Execution)
	if ctx.Bool("remote") {
		log.Info("forwarding requests to the deployed function")
		functions = fx.Options(
			fx.Provide(app.NewAWSConfig),
			remote.Module(),
		)
	}

	return shell.Run(ctx.Context,
		functions,
		gateway.Module(cfg.Gateway),
		server.Module(cfg.Server),
	)
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
