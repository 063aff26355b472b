package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/app"
	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/internal/remote"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	invokeCmdDescription = `The invoke command invokes the function once with an event and
prints its result. By default the function is hosted in the
local execution environment, with the memory size and timeout
of the stack. With --remote, the deployed function is invoked
through the Lambda API.`
	invokeCmd = &cli.Command{
		Name:        "invoke",
		Usage:       "Invoke the function with an event.",
		Description: invokeCmdDescription,
		Before:      loadConfig,
		Action:      invokeAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event",
				Usage:   "the event to invoke the function with, as json.",
				Aliases: []string{"e"},
				Value:   `{"message":"test"}`,
			},
			&cli.PathFlag{
				Name:  "event-file",
				Usage: "read the event from a file, - reads stdin.",
			},
			&cli.BoolFlag{
				Name:     "remote",
				Usage:    "invoke the deployed function.",
				Category: "function",
			},
		},
	}
)

func invokeAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	payload, err := readEvent(ctx)
	if err != nil {
		return err
	}

	s, err := stack.New(cfg.Stack)
	if err != nil {
		return err
	}

	var invoker execution.Invoker
	if ctx.Bool("remote") {
		awsConfig, err := app.NewAWSConfig(ctx.Context, cfg.Stack)
		if err != nil {
			return fmt.Errorf("error loading aws config: %w", err)
		}

		invoker = remote.NewInvoker(lambdasdk.NewFromConfig(awsConfig), s.Function().Name, log)
	} else {
		fn, err := execution.NewFunction(execution.FunctionParams{
			Config: cfg.Execution,
			Def: app.NewFunctionDef(app.FunctionDefParams{
				Stack:  s,
				Logger: log,
			}).Def,
			Log: log.Named("execution"),
		})
		if err != nil {
			return err
		}
		defer fn.Shutdown()

		invoker = fn
	}

	result, err := invoker.Invoke(ctx.Context, payload)
	if err != nil {
		var fnErr *execution.FunctionError
		if errors.As(err, &fnErr) {
			log.Error("function failed",
				zap.String("errorType", fnErr.Type),
				zap.String("errorMessage", fnErr.Message),
			)
		}
		return fmt.Errorf("error invoking function: %w", err)
	}

	_, err = fmt.Fprintln(ctx.App.Writer, string(result))
	return err
}

func readEvent(ctx *cli.Context) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch name := ctx.Path("event-file"); name {
	case "":
		data = []byte(ctx.String("event"))
	case "-":
		data, err = io.ReadAll(ctx.App.Reader)
	default:
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading event: %w", err)
	}

	if !json.Valid(data) {
		return nil, errors.New("event is not valid json")
	}

	return data, nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, invokeCmd)
}
