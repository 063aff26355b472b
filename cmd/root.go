package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/internal/shell"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	appName  = "hello-stack"
	appUsage = `Declare, deploy and run a hello world function behind a REST
API, and emulate the stack locally.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load configuration from a json or .env file.",
				Aliases: []string{"c"},
				EnvVars: []string{"HELLO_STACK_CONFIG"},
			},
			// stack flags
			&cli.StringFlag{
				Name:     "stack-name",
				Usage:    "the name of the CloudFormation stack.",
				Category: "stack",
				EnvVars:  []string{"STACK_NAME"},
			},
			&cli.StringFlag{
				Name:     "region",
				Usage:    "the region the stack is deployed to.",
				Category: "stack",
				EnvVars:  []string{"AWS_REGION"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// the deployed package is started without arguments
			if !isAWSLambda() {
				return cli.ShowAppHelp(ctx)
			}

			if err := loadConfig(ctx); err != nil {
				return err
			}

			return lambdaAction(ctx)
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}

	// cliMap maps flag names to config keys
	cliMap = map[string]string{
		"stack-name":          "stack.name",
		"region":              "stack.region",
		"account":             "stack.account",
		"asset":               "stack.function.asset",
		"bucket":              "deploy.bucket",
		"host":                "server.host",
		"port":                "server.port",
		"h2c":                 "server.h2c",
		"max-concurrency":     "execution.max_concurrency",
		"lambda-proxy-source": "lambda.proxy_source",
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return
	}

	// if app exited with ExitError, exit with given exit code
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	os.Exit(1)
}

// loadConfig layers defaults, the config file, the environment and the
// command's flags into the config and injects it into the cli context.
func loadConfig(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Cli:       ctx,
		CliMap:    cliMap,
		Defaults:  config.Defaults(),
		EnvPrefix: config.EnvPrefix,
		FileName:  ctx.Path("config"),
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	return nil
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
