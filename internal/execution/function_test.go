package execution_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lambda-feedback/hello-stack/internal/execution"
)

type event struct {
	Message string `json:"message"`
}

type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func echoHandler() lambda.Handler {
	return lambda.NewHandler(func(ctx context.Context, e event) (response, error) {
		return response{StatusCode: 200, Body: e.Message}, nil
	})
}

func createFunction(t *testing.T, maxConcurrency int, timeout time.Duration, handler func() lambda.Handler) *execution.Function {
	t.Helper()

	fn, err := execution.NewFunction(execution.FunctionParams{
		Config: execution.Config{MaxConcurrency: maxConcurrency},
		Def: execution.FunctionDef{
			ID:      "HelloHandler",
			Name:    "handler",
			Arn:     "arn:aws:lambda:us-east-1:000000000000:function:handler",
			Timeout: timeout,
			Handler: handler,
		},
		Log: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(fn.Shutdown)

	return fn
}

func TestFunction_Invoke(t *testing.T) {
	fn := createFunction(t, 1, time.Second, echoHandler)

	out, err := fn.Invoke(context.Background(), []byte(`{"message":"test"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":200,"body":"test"}`, string(out))
}

func TestFunction_Invoke_ReusesWarmSandbox(t *testing.T) {
	var created atomic.Int32
	fn := createFunction(t, 1, time.Second, func() lambda.Handler {
		created.Add(1)
		return echoHandler()
	})

	for i := 0; i < 3; i++ {
		_, err := fn.Invoke(context.Background(), []byte(`{}`))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(1), fn.Stat().TotalResources())
}

func TestFunction_Invoke_LambdaContext(t *testing.T) {
	var requestID, arn string
	fn := createFunction(t, 1, time.Second, func() lambda.Handler {
		return lambda.NewHandler(func(ctx context.Context) error {
			lc, ok := lambdacontext.FromContext(ctx)
			if !ok {
				return errors.New("missing lambda context")
			}
			requestID = lc.AwsRequestID
			arn = lc.InvokedFunctionArn
			return nil
		})
	})

	_, err := fn.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	assert.Len(t, requestID, 36)
	assert.Equal(t, "arn:aws:lambda:us-east-1:000000000000:function:handler", arn)
}

func TestFunction_Invoke_ReportsNameAndMemory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	fn, err := execution.NewFunction(execution.FunctionParams{
		Config: execution.Config{MaxConcurrency: 1},
		Def: execution.FunctionDef{
			ID:         "HelloHandler",
			Name:       "handler",
			MemorySize: 128,
			Timeout:    time.Second,
			Handler:    echoHandler,
		},
		Log: zap.New(core),
	})
	require.NoError(t, err)
	t.Cleanup(fn.Shutdown)

	_, err = fn.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	finished := logs.FilterMessage("invocation finished").All()
	require.Len(t, finished, 1)

	fields := finished[0].ContextMap()
	assert.Equal(t, "handler", fields["function_name"])
	assert.Equal(t, int64(128), fields["memory_size"])
	assert.Equal(t, true, fields["cold_start"])
}

func TestFunction_Invoke_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fn := createFunction(t, 1, 50*time.Millisecond, func() lambda.Handler {
		return lambda.NewHandler(func(ctx context.Context) error {
			<-release
			return nil
		})
	})

	start := time.Now()
	_, err := fn.Invoke(context.Background(), []byte(`{}`))

	assert.ErrorIs(t, err, execution.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFunction_Invoke_FunctionError(t *testing.T) {
	fn := createFunction(t, 1, time.Second, func() lambda.Handler {
		return lambda.NewHandler(func() error {
			return errors.New("boom")
		})
	})

	_, err := fn.Invoke(context.Background(), []byte(`{}`))

	var fnErr *execution.FunctionError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, "boom", fnErr.Message)
	assert.Equal(t, "errorString", fnErr.Type)
	assert.False(t, fnErr.Panicked())
}

func TestFunction_Invoke_Panic(t *testing.T) {
	var created atomic.Int32
	fn := createFunction(t, 1, time.Second, func() lambda.Handler {
		created.Add(1)
		return lambda.NewHandler(func() error {
			panic("kaboom")
		})
	})

	_, err := fn.Invoke(context.Background(), []byte(`{}`))

	var fnErr *execution.FunctionError
	require.ErrorAs(t, err, &fnErr)
	assert.True(t, fnErr.Panicked())
	assert.Equal(t, "kaboom", fnErr.Message)

	// the panicked sandbox is replaced by a fresh one
	assert.Eventually(t, func() bool {
		_, _ = fn.Invoke(context.Background(), []byte(`{}`))
		return created.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestFunction_Invoke_Throttled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	fn := createFunction(t, 1, 5*time.Second, func() lambda.Handler {
		return lambda.NewHandler(func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	})

	done := make(chan error, 1)
	go func() {
		_, err := fn.Invoke(context.Background(), []byte(`{}`))
		done <- err
	}()

	<-started

	_, err := fn.Invoke(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, execution.ErrThrottled)

	close(release)
	assert.NoError(t, <-done)
}

func TestFunction_Invoke_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fn := createFunction(t, 1, 5*time.Second, func() lambda.Handler {
		return lambda.NewHandler(func(ctx context.Context) error {
			<-release
			return nil
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fn.Invoke(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, execution.ErrTimeout)
}

func TestNewFunction_RequiresHandler(t *testing.T) {
	_, err := execution.NewFunction(execution.FunctionParams{
		Def: execution.FunctionDef{ID: "x", Timeout: time.Second},
		Log: zaptest.NewLogger(t),
	})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	registry := execution.NewRegistry()
	fn := createFunction(t, 1, time.Second, echoHandler)

	require.NoError(t, registry.Register("HelloHandler", fn))
	assert.ErrorIs(t, registry.Register("HelloHandler", fn), execution.ErrDuplicateFunction)

	invoker, err := registry.Lookup("HelloHandler")
	require.NoError(t, err)
	assert.Same(t, fn, invoker)

	_, err = registry.Lookup("Other")
	assert.ErrorIs(t, err, execution.ErrUnknownFunction)

	assert.Equal(t, []string{"HelloHandler"}, registry.IDs())
}
