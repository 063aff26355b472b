package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/hello-stack/app"
	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/internal/remote"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	logsCmdDescription = `The logs command prints the log stream of the deployed function,
including the events it logged for each invocation.`
	logsCmd = &cli.Command{
		Name:        "logs",
		Usage:       "Print the logs of the deployed function.",
		Description: logsCmdDescription,
		Before:      loadConfig,
		Action:      logsAction,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "since",
				Usage: "print events newer than the given duration.",
				Value: 10 * time.Minute,
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "a CloudWatch Logs filter pattern.",
			},
			&cli.BoolFlag{
				Name:    "follow",
				Usage:   "keep printing new events.",
				Aliases: []string{"f"},
			},
		},
	}
)

func logsAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	awsConfig, err := app.NewAWSConfig(ctx.Context, cfg.Stack)
	if err != nil {
		return err
	}

	readCtx, cancel := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logs := remote.NewLogs(cloudwatchlogs.NewFromConfig(awsConfig), log)

	err = logs.Read(readCtx, remote.LogsParams{
		Function:     cfg.Stack.Function.Name,
		Since:        time.Now().Add(-ctx.Duration("since")),
		Filter:       ctx.String("filter"),
		Follow:       ctx.Bool("follow"),
		PollInterval: 2 * time.Second,
	}, remote.Printer(ctx.App.Writer))
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func init() {
	rootApp.Commands = append(rootApp.Commands, logsCmd)
}
