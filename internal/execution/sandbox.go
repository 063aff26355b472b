package execution

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
)

// Sandbox is a single execution environment of a function. A sandbox runs
// one invocation at a time.
type Sandbox struct {
	id          string
	def         FunctionDef
	handler     lambda.Handler
	invocations int
	log         *zap.Logger
}

func newSandbox(id string, def FunctionDef, log *zap.Logger) *Sandbox {
	return &Sandbox{
		id:      id,
		def:     def,
		handler: def.Handler(),
		log:     log.With(zap.String("sandbox", id)),
	}
}

// ID returns the sandbox id.
func (s *Sandbox) ID() string {
	return s.id
}

// Invocations returns the number of invocations the sandbox handled.
func (s *Sandbox) Invocations() int {
	return s.invocations
}

// Invoke runs the handler with payload, bounded by the function timeout.
// The handler keeps running in the background after a timeout, so a sandbox
// that returned ErrTimeout must not be reused.
func (s *Sandbox) Invoke(ctx context.Context, requestID string, payload []byte) ([]byte, error) {
	s.invocations++

	invokeCtx, cancel := context.WithTimeout(ctx, s.def.Timeout)
	defer cancel()

	invokeCtx = lambdacontext.NewContext(invokeCtx, &lambdacontext.LambdaContext{
		AwsRequestID:       requestID,
		InvokedFunctionArn: s.def.Arn,
	})

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: newPanicError(r)}
			}
		}()

		data, err := s.handler.Invoke(invokeCtx, payload)
		if err != nil {
			err = newFunctionError(err)
		}
		done <- result{data: data, err: err}
	}()

	start := time.Now()

	select {
	case res := <-done:
		s.log.Debug("invocation finished",
			zap.String("request_id", requestID),
			zap.String("function_name", s.def.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Int("memory_size", s.def.MemorySize),
			zap.Bool("cold_start", s.invocations == 1),
		)
		return res.data, res.err
	case <-invokeCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.log.Warn("invocation timed out",
			zap.String("request_id", requestID),
			zap.Duration("timeout", s.def.Timeout),
		)
		return nil, ErrTimeout
	}
}
