// Package gateway emulates the REST API in front of the function. It mounts
// the routes of a deployment, checks the invoke grants, converts requests
// into proxy integration events and relays the function's responses.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/gateway/schema"
	"github.com/lambda-feedback/hello-stack/internal/execution"
	"github.com/lambda-feedback/hello-stack/stack"
)

// FunctionResolver resolves the invoker of a function.
type FunctionResolver interface {
	Lookup(id string) (execution.Invoker, error)
}

type Params struct {
	// Config is the gateway config.
	Config Config

	// Deployment is the deployment served by the gateway.
	Deployment stack.Deployment

	// Functions resolves the functions the routes are bound to.
	Functions FunctionResolver

	// Log is the logger to use for the gateway.
	Log *zap.Logger
}

// Gateway is an http.Handler serving a deployment.
type Gateway struct {
	config     Config
	deployment stack.Deployment
	functions  FunctionResolver
	schema     *schema.Schema
	router     *mux.Router
	metrics    metrics
	log        *zap.Logger
	execLog    *zap.Logger
}

var _ http.Handler = (*Gateway)(nil)

func New(params Params) (*Gateway, error) {
	responseSchema, err := schema.NewProxyResponseSchema()
	if err != nil {
		return nil, fmt.Errorf("error loading response schema: %w", err)
	}

	if params.Config.ApiID == "" {
		params.Config.ApiID = "local"
	}

	g := &Gateway{
		config:     params.Config,
		deployment: params.Deployment,
		functions:  params.Functions,
		schema:     responseSchema,
		router:     mux.NewRouter(),
		log:        params.Log,
		execLog:    executionLogger(params.Log.Named("execution"), params.Deployment.Stage.LoggingLevel),
	}

	g.router.NotFoundHandler = http.HandlerFunc(g.missingRoute)
	g.router.MethodNotAllowedHandler = http.HandlerFunc(g.missingRoute)

	for _, route := range params.Deployment.Routes {
		if _, err := params.Functions.Lookup(string(route.Function)); err != nil {
			return nil, fmt.Errorf("error mounting %s: %w", route, err)
		}

		g.router.NewRoute().
			Path(route.Path).
			Methods(route.Methods()...).
			Handler(g.routeHandler(route))

		g.log.Info("mounted route",
			zap.Stringer("route", route),
			zap.String("function", string(route.Function)),
			zap.String("stage", params.Deployment.Stage.Name),
		)
	}

	return g, nil
}

// Metrics returns the stage metrics accumulated so far.
func (g *Gateway) Metrics() MetricsSnapshot {
	return g.metrics.get()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	info := &requestInfo{
		id:    uuid.NewString(),
		start: start,
	}

	w.Header().Set(headerRequestID, info.id)

	if g.deployment.Stage.TracingEnabled {
		info.traceID = traceID(r, start)
		r.Header.Set(headerTraceID, info.traceID)
		w.Header().Set(headerTraceID, info.traceID)
	}

	rec := &responseRecorder{ResponseWriter: w}

	g.router.ServeHTTP(rec, r.WithContext(withRequestInfo(r.Context(), info)))

	latency := time.Since(start)

	g.log.Named("access").Info("request",
		zap.String("request_id", info.id),
		zap.String("ip", sourceIP(r, g.config.SourceIPHeader)),
		zap.String("request_time", start.UTC().Format(requestTimeLayout)),
		zap.String("http_method", r.Method),
		zap.String("resource_path", info.route),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.String("protocol", r.Proto),
		zap.Int("response_length", rec.written),
		zap.Duration("latency", latency),
	)

	if g.deployment.Stage.MetricsEnabled {
		g.metrics.record(rec.status, latency, info.integrationLatency)
		g.log.Named("metrics").Info("metrics",
			zap.String("api_name", g.deployment.ApiName),
			zap.String("stage", g.deployment.Stage.Name),
			zap.Int("count", 1),
			zap.Bool("4xx_error", rec.status >= 400 && rec.status < 500),
			zap.Bool("5xx_error", rec.status >= 500),
			zap.Duration("latency", latency),
			zap.Duration("integration_latency", info.integrationLatency),
		)
	}
}

// missingRoute answers requests matching no route. The function is never
// involved.
func (g *Gateway) missingRoute(w http.ResponseWriter, r *http.Request) {
	g.execLog.Info("no route matched",
		zap.String("request_id", requestInfoFromContext(r.Context()).id),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	responseMissingToken.write(w)
}

func (g *Gateway) routeHandler(route stack.RouteBinding) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := requestInfoFromContext(r.Context())
		info.route = route.Path

		log := g.execLog.With(
			zap.String("request_id", info.id),
			zap.Stringer("route", route),
		)

		ctx, finish := g.startTransaction(r.Context(), route, info)
		status := g.handle(ctx, w, r.WithContext(ctx), route, info, log)
		finish(status)
	})
}

// handle runs the integration of route and returns the response status, or
// zero when nothing was written.
func (g *Gateway) handle(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	route stack.RouteBinding,
	info *requestInfo,
	log *zap.Logger,
) int {
	log.Info("received request", zap.String("method", r.Method), zap.String("path", r.URL.Path))

	if !g.deployment.Authorized(route, r.Method) {
		log.Error("execution failed due to configuration error: invalid permissions on function",
			zap.String("function", string(route.Function)),
			zap.String("principal", stack.PrincipalApiGateway),
		)
		responseForbidden.write(w)
		return responseForbidden.Status
	}

	account := g.deployment.Account
	if account == "" {
		account = stack.LocalAccount
	}

	event, err := newProxyRequest(eventParams{
		Request:   r,
		Route:     route,
		Stage:     g.deployment.Stage.Name,
		ApiID:     g.config.ApiID,
		Account:   account,
		RequestID: info.id,
		SourceIP:  sourceIP(r, g.config.SourceIPHeader),
		Time:      info.start,
	})
	if err != nil {
		if r.Context().Err() != nil {
			log.Info("caller disconnected", zap.Error(err))
			return 0
		}

		log.Error("failed to read request body", zap.Error(err))
		responseBadGateway.write(w)
		return responseBadGateway.Status
	}

	if g.deployment.Stage.DataTraceEnabled {
		g.log.Info("endpoint request", zap.String("request_id", info.id), zap.Any("event", event))
	}

	start := time.Now()
	raw, err := g.invoke(ctx, route, event)
	info.integrationLatency = time.Since(start)

	if err != nil {
		if r.Context().Err() != nil {
			log.Info("caller disconnected", zap.Error(err))
			return 0
		}

		res := classify(err)
		if res.Status >= 500 {
			sentry.CaptureException(err)
		}
		log.Error("execution failed", zap.Error(err), zap.Int("status", res.Status))
		res.write(w)
		return res.Status
	}

	if g.deployment.Stage.DataTraceEnabled {
		g.log.Info("endpoint response", zap.String("request_id", info.id), zap.ByteString("body", raw))
	}

	res, body, err := g.decode(raw)
	if err != nil {
		log.Error("execution failed due to configuration error: malformed proxy response", zap.Error(err))
		responseBadGateway.write(w)
		return responseBadGateway.Status
	}

	if !route.Declares(res.StatusCode) {
		g.log.Warn("status code not declared in method responses",
			zap.String("request_id", info.id),
			zap.Stringer("route", route),
			zap.Int("status", res.StatusCode),
		)
	}

	header := w.Header()
	for name, values := range res.MultiValueHeaders {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	for name, value := range res.Headers {
		header.Set(name, value)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	w.WriteHeader(res.StatusCode)
	if _, err := w.Write(body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}

	log.Info("method completed", zap.Int("status", res.StatusCode), zap.Duration("integration_latency", info.integrationLatency))

	return res.StatusCode
}

// invoke hands event to the route's function, bounded by the integration
// timeout.
func (g *Gateway) invoke(ctx context.Context, route stack.RouteBinding, event events.APIGatewayProxyRequest) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("error encoding event: %w", err)
	}

	invoker, err := g.functions.Lookup(string(route.Function))
	if err != nil {
		return nil, err
	}

	if g.deployment.IntegrationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.deployment.IntegrationTimeout)
		defer cancel()
	}

	span := g.startSpan(ctx, "lambda.invoke")
	defer span()

	return invoker.Invoke(ctx, payload)
}

// decode validates a function result and returns it with its decoded body.
func (g *Gateway) decode(raw []byte) (events.APIGatewayProxyResponse, []byte, error) {
	var res events.APIGatewayProxyResponse

	if err := g.schema.Validate(raw); err != nil {
		return res, nil, err
	}

	if err := json.Unmarshal(raw, &res); err != nil {
		return res, nil, fmt.Errorf("error decoding proxy response: %w", err)
	}

	if !res.IsBase64Encoded {
		return res, []byte(res.Body), nil
	}

	body, err := base64.StdEncoding.DecodeString(res.Body)
	if err != nil {
		return res, nil, fmt.Errorf("error decoding base64 body: %w", err)
	}

	return res, body, nil
}

// classify maps an invocation failure to the response of the gateway.
func classify(err error) gatewayResponse {
	switch {
	case errors.Is(err, execution.ErrThrottled):
		return responseThrottled
	case errors.Is(err, context.DeadlineExceeded):
		return responseTimeout
	default:
		return responseBadGateway
	}
}

// startTransaction starts a sentry transaction for the request when tracing
// is enabled. The returned function finishes it with the response status.
func (g *Gateway) startTransaction(ctx context.Context, route stack.RouteBinding, info *requestInfo) (context.Context, func(int)) {
	if !g.deployment.Stage.TracingEnabled {
		return ctx, func(int) {}
	}

	tx := sentry.StartTransaction(ctx, route.String(),
		sentry.WithOpName("http.server"),
		sentry.WithTransactionSource(sentry.SourceRoute),
	)
	tx.SetTag("request_id", info.id)
	tx.SetTag("trace_id", info.traceID)
	tx.SetTag("stage", g.deployment.Stage.Name)

	return tx.Context(), func(status int) {
		if status != 0 {
			tx.Status = sentry.HTTPtoSpanStatus(status)
		}
		tx.Finish()
	}
}

// startSpan starts a child span when tracing is enabled.
func (g *Gateway) startSpan(ctx context.Context, operation string) func() {
	if !g.deployment.Stage.TracingEnabled {
		return func() {}
	}

	span := sentry.StartSpan(ctx, operation)
	return span.Finish
}
