package config

import (
	"github.com/lambda-feedback/hello-stack/function"
	"github.com/lambda-feedback/hello-stack/gateway"
	"github.com/lambda-feedback/hello-stack/internal/deploy"
	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/internal/server"
	"github.com/lambda-feedback/hello-stack/stack"
	"github.com/lambda-feedback/hello-stack/util/conf"
)

// EnvPrefix is the prefix of environment variables overriding the config,
// e.g. HELLO_STACK__STACK__REGION.
const EnvPrefix = "HELLO_STACK"

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Stack is the deployment-time configuration of the stack
	Stack stack.Config `conf:"stack"`

	// Deploy configures provisioning
	Deploy deploy.Config `conf:"deploy"`

	// Execution configures the local execution environment
	Execution execution.Config `conf:"execution"`

	// Gateway configures the local gateway
	Gateway gateway.Config `conf:"gateway"`

	// Server is the http server configuration of the local gateway
	Server server.HttpConfig `conf:"server"`

	// Lambda configures the Lambda runtime entrypoint
	Lambda function.Config `conf:"lambda"`
}

// Defaults returns the default configuration as the lowest config layer.
func Defaults() conf.DefaultConfig {
	deployConfig := deploy.DefaultConfig()

	namespaces := []conf.DefaultConfig{
		{
			"log_level":  "info",
			"log_format": "production",
		},
		conf.MergeDefaults("stack", conf.DefaultConfig(stack.Defaults())),
		conf.MergeDefaults("deploy", conf.DefaultConfig{
			"prefix":        deployConfig.Prefix,
			"poll_interval": deployConfig.PollInterval.String(),
			"timeout":       deployConfig.Timeout.String(),
		}),
		conf.MergeDefaults("execution", conf.DefaultConfig{
			"max_concurrency": 10,
		}),
		conf.MergeDefaults("server", conf.DefaultConfig{
			"host": "localhost",
			"port": 3000,
			"h2c":  false,
		}),
		conf.MergeDefaults("lambda", conf.DefaultConfig{
			"proxy_source": string(function.ProxySourceDirect),
		}),
	}

	defaults := make(conf.DefaultConfig)
	for _, ns := range namespaces {
		for key, val := range ns {
			defaults[key] = val
		}
	}

	return defaults
}
