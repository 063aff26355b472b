package cmd

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/internal/deploy"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/conf"
	"github.com/lambda-feedback/hello-stack/util/logging"
)

var (
	deployCmdDescription = `The deploy command packages the function asset, uploads it
to S3 and creates or updates the CloudFormation stack. It
blocks until the stack has settled and prints its outputs,
including the URL of the API.`
	deployCmd = &cli.Command{
		Name:        "deploy",
		Usage:       "Provision the stack.",
		Description: deployCmdDescription,
		Before:      loadConfig,
		Action:      deployAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "account",
				Usage:    "refuse to deploy with credentials of another account.",
				Category: "stack",
			},
			&cli.PathFlag{
				Name:     "asset",
				Usage:    "the directory holding the built function package.",
				Category: "stack",
			},
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "the S3 bucket function packages are uploaded to.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_BUCKET"},
			},
		},
	}

	destroyCmdDescription = `The destroy command deletes the CloudFormation stack and
blocks until the deletion is complete. Uploaded function
packages are left in place.`
	destroyCmd = &cli.Command{
		Name:        "destroy",
		Usage:       "Delete the stack.",
		Description: destroyCmdDescription,
		Before:      loadConfig,
		Action:      destroyAction,
	}
)

func newDeployer(ctx *cli.Context) (*deploy.Deployer, config.Config, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, config.Config{}, err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, cfg, err
	}

	awsConfig, err := deploy.LoadAWSConfig(ctx.Context, cfg.Stack.Region)
	if err != nil {
		return nil, cfg, fmt.Errorf("error loading aws config: %w", err)
	}

	deployer := deploy.New(deploy.Params{
		Config:  cfg.Deploy,
		Region:  cfg.Stack.Region,
		Clients: deploy.NewClients(awsConfig),
		Log:     log,
	})

	return deployer, cfg, nil
}

func deployAction(ctx *cli.Context) error {
	deployer, cfg, err := newDeployer(ctx)
	if err != nil {
		return err
	}

	s, err := stack.New(cfg.Stack)
	if err != nil {
		return err
	}

	result, err := deployer.Deploy(ctx.Context, s)
	if err != nil {
		return err
	}

	return printResult(ctx, result)
}

func destroyAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	deployer, cfg, err := newDeployer(ctx)
	if err != nil {
		return err
	}

	if err := deployer.Destroy(ctx.Context, cfg.Stack.Name); err != nil {
		return err
	}

	log.Info("stack deleted", zap.String("stack", cfg.Stack.Name))

	return nil
}

func printResult(ctx *cli.Context, result *deploy.Result) error {
	w := ctx.App.Writer

	if _, err := fmt.Fprintf(w, "%s %s\n", result.StackID, result.Status); err != nil {
		return err
	}

	keys := make([]string, 0, len(result.Outputs))
	for key := range result.Outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s = %s\n", key, result.Outputs[key]); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, deployCmd, destroyCmd)
}
