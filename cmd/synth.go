package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lambda-feedback/hello-stack/config"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/conf"
)

var (
	synthCmdDescription = `The synth command declares the stack and prints the synthesized
CloudFormation template. Synthesis fails if a resource refers to
an undeclared resource, or if the API deployment is not ordered
after the method and the invoke permission.`
	synthCmd = &cli.Command{
		Name:        "synth",
		Usage:       "Print the CloudFormation template of the stack.",
		Description: synthCmdDescription,
		Before:      loadConfig,
		Action:      synthAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Usage:   "the template encoding. Options: json, yaml.",
				Aliases: []string{"f"},
				Value:   "json",
			},
			&cli.PathFlag{
				Name:    "output",
				Usage:   "write the template to a file instead of stdout.",
				Aliases: []string{"o"},
			},
		},
	}
)

func synthAction(ctx *cli.Context) error {
	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	s, err := stack.New(cfg.Stack)
	if err != nil {
		return err
	}

	var data []byte
	switch format := ctx.String("format"); format {
	case "json":
		data, err = s.Template().JSON()
	case "yaml":
		data, err = s.Template().YAML()
	default:
		return fmt.Errorf("invalid template format: %s", format)
	}
	if err != nil {
		return err
	}

	if output := ctx.Path("output"); output != "" {
		return os.WriteFile(output, data, 0o644)
	}

	_, err = ctx.App.Writer.Write(data)
	return err
}

func init() {
	rootApp.Commands = append(rootApp.Commands, synthCmd)
}
