package remote

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logstypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lambda-feedback/hello-stack/internal/execution"
)

type mockLambda struct {
	mock.Mock
}

func (m *mockLambda) Invoke(ctx context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*lambda.InvokeOutput)
	return out, args.Error(1)
}

type mockLogs struct {
	mock.Mock
}

func (m *mockLogs) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudwatchlogs.FilterLogEventsOutput)
	return out, args.Error(1)
}

func TestInvoker_Invoke(t *testing.T) {
	client := &mockLambda{}
	client.On("Invoke", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return aws.ToString(in.FunctionName) == "handler" &&
			in.InvocationType == lambdatypes.InvocationTypeRequestResponse &&
			string(in.Payload) == `{"message":"test"}`
	})).Return(&lambda.InvokeOutput{
		StatusCode: 200,
		Payload:    []byte(`{"statusCode":200,"body":"{\"message\":\"Hello World\"}"}`),
	}, nil)

	out, err := NewInvoker(client, "handler", zaptest.NewLogger(t)).
		Invoke(context.Background(), []byte(`{"message":"test"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode":200,"body":"{\"message\":\"Hello World\"}"}`, string(out))
}

func TestInvoker_FunctionError(t *testing.T) {
	client := &mockLambda{}
	client.On("Invoke", mock.Anything, mock.Anything).Return(&lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"boom","errorType":"errorString"}`),
	}, nil)

	_, err := NewInvoker(client, "handler", zaptest.NewLogger(t)).Invoke(context.Background(), []byte(`{}`))

	var fnErr *execution.FunctionError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, "boom", fnErr.Message)
	assert.Equal(t, "errorString", fnErr.Type)
}

func TestInvoker_Timeout(t *testing.T) {
	client := &mockLambda{}
	client.On("Invoke", mock.Anything, mock.Anything).Return(&lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"2024-05-01T12:00:00Z 1-abc Task timed out after 3.00 seconds"}`),
	}, nil)

	_, err := NewInvoker(client, "handler", zaptest.NewLogger(t)).Invoke(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, execution.ErrTimeout)
}

func TestInvoker_Throttled(t *testing.T) {
	client := &mockLambda{}
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, &lambdatypes.TooManyRequestsException{Message: aws.String("Rate Exceeded.")})

	_, err := NewInvoker(client, "handler", zaptest.NewLogger(t)).Invoke(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, execution.ErrThrottled)
}

func TestLogs_Read(t *testing.T) {
	client := &mockLogs{}
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	client.On("FilterLogEvents", mock.Anything, mock.MatchedBy(func(in *cloudwatchlogs.FilterLogEventsInput) bool {
		return aws.ToString(in.LogGroupName) == "/aws/lambda/handler" &&
			aws.ToInt64(in.StartTime) == since.UnixMilli() &&
			in.NextToken == nil
	})).Return(&cloudwatchlogs.FilterLogEventsOutput{
		Events: []logstypes.FilteredLogEvent{
			{EventId: aws.String("1"), Timestamp: aws.Int64(since.Add(time.Second).UnixMilli()), LogStreamName: aws.String("s"), Message: aws.String("START\n")},
		},
		NextToken: aws.String("next"),
	}, nil).Once()
	client.On("FilterLogEvents", mock.Anything, mock.MatchedBy(func(in *cloudwatchlogs.FilterLogEventsInput) bool {
		return aws.ToString(in.NextToken) == "next"
	})).Return(&cloudwatchlogs.FilterLogEventsOutput{
		Events: []logstypes.FilteredLogEvent{
			{EventId: aws.String("2"), Timestamp: aws.Int64(since.Add(2 * time.Second).UnixMilli()), LogStreamName: aws.String("s"), Message: aws.String(`{"msg":"event"}`)},
		},
	}, nil).Once()

	var out bytes.Buffer
	err := NewLogs(client, zaptest.NewLogger(t)).Read(context.Background(), LogsParams{
		Function: "handler",
		Since:    since,
	}, Printer(&out))
	require.NoError(t, err)

	assert.Equal(t,
		"2024-05-01T12:00:01Z s START\n2024-05-01T12:00:02Z s {\"msg\":\"event\"}\n",
		out.String(),
	)
	client.AssertExpectations(t)
}
