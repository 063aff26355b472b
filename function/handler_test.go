package function

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const expectedBody = `{"message":"Hello World"}`

func newObservedHandler() (*Handler, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewHandler(HandlerParams{Logger: zap.New(core)}), logs
}

func decodeEvent(t *testing.T, raw string) Event {
	t.Helper()

	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestHandle_TestMessage(t *testing.T) {
	h, logs := newObservedHandler()

	res, err := h.Handle(context.Background(), decodeEvent(t, `{"message":"test"}`))
	require.NoError(t, err)

	assert.Equal(t, Response{StatusCode: 200, Body: expectedBody}, res)

	entries := logs.All()
	require.Len(t, entries, 1)
	logged, ok := entries[0].ContextMap()["event"].(string)
	require.True(t, ok)
	assert.JSONEq(t, `{"message":"test"}`, logged)
	assert.Contains(t, logged, "\n  \"message\": \"test\"")
}

func TestHandle_ConstantOutput(t *testing.T) {
	events := []string{
		`{"message":"test"}`,
		`{"message":""}`,
		`{"message":42}`,
		`{"other":"field"}`,
		`{}`,
		`[]`,
		`null`,
		`"just a string"`,
		`{"message":"x","nested":{"a":[1,2,3]}}`,
	}

	h := NewHandler(HandlerParams{Logger: zaptest.NewLogger(t)})

	for _, raw := range events {
		t.Run(raw, func(t *testing.T) {
			res, err := h.Handle(context.Background(), decodeEvent(t, raw))
			require.NoError(t, err)
			assert.Equal(t, 200, res.StatusCode)
			assert.Equal(t, expectedBody, res.Body)
		})
	}
}

func TestHandle_Idempotent(t *testing.T) {
	h, logs := newObservedHandler()
	event := decodeEvent(t, `{"message":"again"}`)

	first, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, logs.Len())
}

func TestHandle_Concurrent(t *testing.T) {
	h := NewHandler(HandlerParams{Logger: zap.NewNop()})

	var wg sync.WaitGroup
	results := make([]Response, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.Handle(context.Background(), NewEvent("concurrent"))
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, Response{StatusCode: 200, Body: expectedBody}, res)
	}
}

func TestEvent_Decoding(t *testing.T) {
	assert.Equal(t, "test", decodeEvent(t, `{"message":"test"}`).Message)
	assert.Empty(t, decodeEvent(t, `{"message":1}`).Message)
	assert.Empty(t, decodeEvent(t, `{}`).Message)
	assert.Empty(t, decodeEvent(t, `[1]`).Message)

	data, err := json.Marshal(decodeEvent(t, `{"message":1,"b":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":1,"b":true}`, string(data))

	data, err = json.Marshal(NewEvent("built"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"built"}`, string(data))
}

func TestLambdaHandler_Invoke(t *testing.T) {
	h, logs := newObservedHandler()

	out, err := NewLambdaHandler(h).Invoke(context.Background(), []byte(`{"message":"test"}`))
	require.NoError(t, err)

	assert.JSONEq(t, `{"statusCode":200,"body":"{\"message\":\"Hello World\"}"}`, string(out))
	assert.Equal(t, 1, logs.Len())
}

func TestHTTPHandler(t *testing.T) {
	h, logs := newObservedHandler()

	req := httptest.NewRequest(http.MethodGet, "/hello?name=x", strings.NewReader(`{"message":"test"}`))
	rec := httptest.NewRecorder()

	NewHTTPHandler(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, expectedBody, rec.Body.String())

	entries := logs.FilterMessage("event").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["event"], `"httpMethod": "GET"`)
}

func TestEntrypoint_ApiGatewayV1(t *testing.T) {
	h := NewHandler(HandlerParams{Logger: zaptest.NewLogger(t)})

	fn, err := Entrypoint(ProxySourceApiGatewayV1, h)
	require.NoError(t, err)

	proxy, ok := fn.(func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error))
	require.True(t, ok)

	res, err := proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/hello",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, expectedBody, res.Body)
}

func TestEntrypoint_Sources(t *testing.T) {
	h := NewHandler(HandlerParams{Logger: zap.NewNop()})

	for _, source := range []ProxySource{"", ProxySourceDirect, ProxySourceApiGatewayV1, ProxySourceApiGatewayV2, ProxySourceAlb} {
		fn, err := Entrypoint(source, h)
		assert.NoError(t, err, source)
		assert.NotNil(t, fn, source)
	}

	_, err := Entrypoint("SQS", h)
	assert.ErrorContains(t, err, "invalid proxy source")
}
