package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/lambda-feedback/hello-stack/gateway"
	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/stack"
)

func TestNewFunctionDef(t *testing.T) {
	s, err := stack.New(stack.DefaultConfig())
	require.NoError(t, err)

	def := NewFunctionDef(FunctionDefParams{
		Stack:  s,
		Logger: zaptest.NewLogger(t),
	}).Def

	assert.Equal(t, stack.FunctionID, def.ID)
	assert.Equal(t, "handler", def.Name)
	assert.Equal(t, "arn:aws:lambda:us-east-1:000000000000:function:handler", def.Arn)
	assert.Equal(t, s.Function().Timeout, def.Timeout)

	out, err := def.Handler().Invoke(context.Background(), []byte(`{"message":"test"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":200,"body":"{\"message\":\"Hello World\"}"}`, string(out))
}

func TestLocalFunctions_Graph(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(zap.NewNop()),
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(stack.DefaultConfig()),
		fx.Provide(stack.New),
		fx.Provide(NewDeployment),
		LocalFunctions(execution.Config{MaxConcurrency: 1}),
		gateway.Module(gateway.Config{}),
		fx.Invoke(func(*gateway.Gateway) {}),
	)
	assert.NoError(t, err)
}
