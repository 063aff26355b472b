// Package remote talks to the deployed function: it invokes it through the
// Lambda API and reads its log group.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/internal/execution"
)

// LambdaAPI is the part of the Lambda client used here.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Invoker invokes a deployed function synchronously.
type Invoker struct {
	client   LambdaAPI
	function string
	log      *zap.Logger
}

var _ execution.Invoker = (*Invoker)(nil)

// NewInvoker returns an invoker for the function with the given name or ARN.
func NewInvoker(client LambdaAPI, function string, log *zap.Logger) *Invoker {
	return &Invoker{
		client:   client,
		function: function,
		log:      log.Named("invoker").With(zap.String("function", function)),
	}
}

// Invoke sends payload to the function and returns its result. Errors
// raised by the function are returned as *execution.FunctionError, and
// throttling as execution.ErrThrottled.
func (i *Invoker) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		var throttled *lambdatypes.TooManyRequestsException
		if errors.As(err, &throttled) {
			return nil, fmt.Errorf("%w: %s", execution.ErrThrottled, throttled.ErrorMessage())
		}
		return nil, fmt.Errorf("error invoking function: %w", err)
	}

	i.log.Debug("function invoked",
		zap.Int32("status", out.StatusCode),
		zap.String("version", aws.ToString(out.ExecutedVersion)),
	)

	if out.FunctionError != nil {
		fnErr := &execution.FunctionError{Type: aws.ToString(out.FunctionError)}
		if err := json.Unmarshal(out.Payload, fnErr); err != nil {
			fnErr.Message = string(out.Payload)
		}
		if strings.Contains(fnErr.Message, "Task timed out") {
			return nil, fmt.Errorf("%w: %s", execution.ErrTimeout, fnErr.Message)
		}
		return nil, fnErr
	}

	return out.Payload, nil
}
