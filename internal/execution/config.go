package execution

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"
)

type Config struct {
	// MaxConcurrency is the maximum number of concurrent invocations per
	// function. Invocations beyond it are throttled.
	MaxConcurrency int `conf:"max_concurrency" validate:"gte=1"`
}

// FunctionDef describes a function hosted by the execution environment.
type FunctionDef struct {
	// ID is the id the function is registered under.
	ID string

	// Name is the deployed function name, reported with every invocation.
	Name string

	// Arn is the invoked function ARN exposed through the lambda context.
	Arn string

	// MemorySize is the configured memory in MB, reported with every
	// invocation. It is not enforced locally.
	MemorySize int

	// Timeout is the execution bound of a single invocation.
	Timeout time.Duration

	// Handler creates the handler of a new sandbox.
	Handler func() lambda.Handler
}
