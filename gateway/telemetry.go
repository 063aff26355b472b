package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	headerRequestID = "x-amzn-RequestId"
	headerTraceID   = "X-Amzn-Trace-Id"
)

// Stage logging levels.
const (
	LoggingOff   = "OFF"
	LoggingError = "ERROR"
	LoggingInfo  = "INFO"
)

// executionLogger returns the logger for execution logs of a stage with the
// given logging level.
func executionLogger(log *zap.Logger, level string) *zap.Logger {
	switch level {
	case LoggingInfo:
		return log.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
	case LoggingError:
		return log.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
	default:
		return zap.NewNop()
	}
}

// newTraceID returns a new X-Ray trace header value.
func newTraceID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("Root=1-%08x-%s", now.Unix(), id[:24])
}

// traceID returns the trace header of r, or a new one.
func traceID(r *http.Request, now time.Time) string {
	if value := r.Header.Get(headerTraceID); value != "" {
		return value
	}
	return newTraceID(now)
}

// requestInfo is the per request state shared between the outer handler and
// the route handler.
type requestInfo struct {
	id                 string
	traceID            string
	start              time.Time
	route              string
	integrationLatency time.Duration
}

type requestInfoKey struct{}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info
	}
	return &requestInfo{}
}

// responseRecorder captures the status and size of a response.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.written += n
	return n, err
}
