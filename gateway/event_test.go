package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-feedback/hello-stack/stack"
)

func TestNewProxyRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/hello?a=1&a=2&b=x", strings.NewReader(`{"message":"test"}`))
	r.Header.Add("X-Multi", "one")
	r.Header.Add("X-Multi", "two")
	r.Header.Set("User-Agent", "curl/8.0")
	r.RemoteAddr = "10.0.0.1:5432"

	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	event, err := newProxyRequest(eventParams{
		Request:   r,
		Route:     stack.RouteBinding{Method: "GET", Path: "/hello"},
		Stage:     "prod",
		ApiID:     "local",
		Account:   "123456789012",
		RequestID: "req-1",
		SourceIP:  sourceIP(r, ""),
		Time:      now,
	})
	require.NoError(t, err)

	assert.Equal(t, "/hello", event.Resource)
	assert.Equal(t, "/hello", event.Path)
	assert.Equal(t, "GET", event.HTTPMethod)
	assert.Equal(t, "two", event.Headers["X-Multi"])
	assert.Equal(t, []string{"one", "two"}, event.MultiValueHeaders["X-Multi"])
	assert.Equal(t, "2", event.QueryStringParameters["a"])
	assert.Equal(t, []string{"1", "2"}, event.MultiValueQueryStringParameters["a"])
	assert.Equal(t, `{"message":"test"}`, event.Body)
	assert.False(t, event.IsBase64Encoded)

	rc := event.RequestContext
	assert.Equal(t, "req-1", rc.RequestID)
	assert.Equal(t, "prod", rc.Stage)
	assert.Equal(t, "local", rc.APIID)
	assert.Equal(t, "123456789012", rc.AccountID)
	assert.Equal(t, "/prod/hello", rc.Path)
	assert.Equal(t, "10.0.0.1", rc.Identity.SourceIP)
	assert.Equal(t, "curl/8.0", rc.Identity.UserAgent)
	assert.Equal(t, "01/May/2024:12:30:00 +0000", rc.RequestTime)
	assert.Equal(t, now.UnixMilli(), rc.RequestTimeEpoch)
}

func TestNewProxyRequest_BinaryBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/hello", bytes.NewReader([]byte{0xff, 0xfe, 0x00}))

	event, err := newProxyRequest(eventParams{Request: r, Stage: "prod"})
	require.NoError(t, err)

	assert.True(t, event.IsBase64Encoded)
	assert.Equal(t, "//4A", event.Body)
	assert.Nil(t, event.QueryStringParameters)
}

func TestSourceIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", sourceIP(r, ""))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", sourceIP(r, "X-Forwarded-For"))
	assert.Equal(t, "192.0.2.1", sourceIP(r, "X-Real-Ip"))
}

func TestMetrics_Record(t *testing.T) {
	var m metrics
	m.record(200, 10*time.Millisecond, 8*time.Millisecond)
	m.record(404, 2*time.Millisecond, 0)
	m.record(502, 30*time.Millisecond, 29*time.Millisecond)

	s := m.get()
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, int64(1), s.ClientErrors)
	assert.Equal(t, int64(1), s.ServerErrors)
	assert.Equal(t, 30*time.Millisecond, s.Latency.Max)
	assert.Equal(t, 14*time.Millisecond, s.Latency.Average())
	assert.Equal(t, int64(2), s.IntegrationLatency.Samples)
}
