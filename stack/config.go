package stack

import "time"

// Config describes the deployment-time configuration of the stack.
type Config struct {
	// Name is the CloudFormation stack name.
	Name string `conf:"name" validate:"required"`

	// Region is the region the stack is deployed to.
	Region string `conf:"region" validate:"required"`

	// Account optionally pins the stack to an AWS account. Deployments
	// with credentials for another account are refused.
	Account string `conf:"account" validate:"omitempty,numeric,len=12"`

	// Function configures the compute unit.
	Function FunctionConfig `conf:"function"`

	// Api configures the REST API in front of the function.
	Api ApiConfig `conf:"api"`
}

type FunctionConfig struct {
	// Name is the physical function name.
	Name string `conf:"name" validate:"required"`

	// Runtime is the Lambda runtime identifier.
	Runtime string `conf:"runtime" validate:"required"`

	// Handler is the entrypoint inside the deployment package.
	Handler string `conf:"handler" validate:"required"`

	// Architecture is the instruction set, x86_64 or arm64.
	Architecture string `conf:"architecture" validate:"omitempty,oneof=x86_64 arm64"`

	// MemorySize is the memory allotment in MB.
	MemorySize int `conf:"memory_size" validate:"gte=128,lte=10240"`

	// Timeout is the execution bound of a single invocation.
	Timeout time.Duration `conf:"timeout" validate:"gte=1s,lte=15m"`

	// Asset is the directory holding the built deployment package.
	Asset string `conf:"asset" validate:"required"`

	// Environment holds the function's environment variables.
	Environment map[string]string `conf:"environment"`

	// Tracing is the X-Ray tracing mode.
	Tracing string `conf:"tracing" validate:"oneof=Active PassThrough"`

	// RoleName is the name of the execution role.
	RoleName string `conf:"role_name" validate:"required"`
}

type ApiConfig struct {
	// Name is the name of the REST API.
	Name string `conf:"name" validate:"required"`

	// PathPart is the single path segment the function is mounted on.
	PathPart string `conf:"path_part" validate:"required,excludes=/"`

	// Method is the HTTP method of the route, or ANY.
	Method string `conf:"method" validate:"oneof=GET POST PUT PATCH DELETE HEAD OPTIONS ANY"`

	// RoleName is the name of the role API Gateway pushes logs with.
	RoleName string `conf:"role_name" validate:"required"`

	// GrantInvoke controls whether the API is allowed to invoke the
	// function. Without the grant every request fails.
	GrantInvoke bool `conf:"grant_invoke"`

	// IntegrationTimeout bounds the wait for the function's response.
	IntegrationTimeout time.Duration `conf:"integration_timeout" validate:"gte=50ms,lte=29s"`

	// Stage configures the deployment stage.
	Stage StageConfig `conf:"stage"`
}

type StageConfig struct {
	Name             string `conf:"name" validate:"required,alphanum"`
	DataTraceEnabled bool   `conf:"data_trace_enabled"`
	LoggingLevel     string `conf:"logging_level" validate:"oneof=OFF ERROR INFO"`
	MetricsEnabled   bool   `conf:"metrics_enabled"`
	TracingEnabled   bool   `conf:"tracing_enabled"`
}

// DefaultConfig returns the configuration of the hello world stack.
func DefaultConfig() Config {
	return Config{
		Name:   "HelloStack",
		Region: "us-east-1",
		Function: FunctionConfig{
			Name:         "handler",
			Runtime:      "provided.al2023",
			Handler:      "bootstrap",
			Architecture: "arm64",
			MemorySize:   128,
			Timeout:      3 * time.Second,
			Asset:        "build/lambda/hello",
			Environment: map[string]string{
				"LOG_LEVEL": "DEBUG",
			},
			Tracing:  "Active",
			RoleName: "LambdaRole",
		},
		Api: ApiConfig{
			Name:               "api_gateway",
			PathPart:           "hello",
			Method:             "GET",
			RoleName:           "APIGatewayRole",
			GrantInvoke:        true,
			IntegrationTimeout: 29 * time.Second,
			Stage: StageConfig{
				Name:             "prod",
				DataTraceEnabled: true,
				LoggingLevel:     "ERROR",
				MetricsEnabled:   true,
				TracingEnabled:   true,
			},
		},
	}
}

// Defaults returns DefaultConfig as a nested map keyed by the conf tags,
// suitable as the lowest configuration layer.
func Defaults() map[string]any {
	cfg := DefaultConfig()

	env := make(map[string]any, len(cfg.Function.Environment))
	for k, v := range cfg.Function.Environment {
		env[k] = v
	}

	return map[string]any{
		"name":   cfg.Name,
		"region": cfg.Region,
		"function": map[string]any{
			"name":         cfg.Function.Name,
			"runtime":      cfg.Function.Runtime,
			"handler":      cfg.Function.Handler,
			"architecture": cfg.Function.Architecture,
			"memory_size":  cfg.Function.MemorySize,
			"timeout":      cfg.Function.Timeout.String(),
			"asset":        cfg.Function.Asset,
			"environment":  env,
			"tracing":      cfg.Function.Tracing,
			"role_name":    cfg.Function.RoleName,
		},
		"api": map[string]any{
			"name":                cfg.Api.Name,
			"path_part":           cfg.Api.PathPart,
			"method":              cfg.Api.Method,
			"role_name":           cfg.Api.RoleName,
			"grant_invoke":        cfg.Api.GrantInvoke,
			"integration_timeout": cfg.Api.IntegrationTimeout.String(),
			"stage": map[string]any{
				"name":               cfg.Api.Stage.Name,
				"data_trace_enabled": cfg.Api.Stage.DataTraceEnabled,
				"logging_level":      cfg.Api.Stage.LoggingLevel,
				"metrics_enabled":    cfg.Api.Stage.MetricsEnabled,
				"tracing_enabled":    cfg.Api.Stage.TracingEnabled,
			},
		},
	}
}
