package gateway

import (
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/lambda-feedback/hello-stack/stack"
)

// requestTimeLayout is the layout of the request time in request contexts.
const requestTimeLayout = "02/Jan/2006:15:04:05 -0700"

type eventParams struct {
	Request   *http.Request
	Route     stack.RouteBinding
	Stage     string
	ApiID     string
	Account   string
	RequestID string
	SourceIP  string
	Time      time.Time
}

// newProxyRequest converts an HTTP request into the proxy integration event
// the function receives.
func newProxyRequest(params eventParams) (events.APIGatewayProxyRequest, error) {
	r := params.Request

	var body []byte
	if r.Body != nil {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			return events.APIGatewayProxyRequest{}, err
		}
	}

	event := events.APIGatewayProxyRequest{
		Resource:   params.Route.Path,
		Path:       r.URL.Path,
		HTTPMethod: r.Method,
		RequestContext: events.APIGatewayProxyRequestContext{
			AccountID:    params.Account,
			ResourcePath: params.Route.Path,
			Stage:        params.Stage,
			RequestID:    params.RequestID,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  params.SourceIP,
				UserAgent: r.UserAgent(),
			},
			HTTPMethod:       r.Method,
			APIID:            params.ApiID,
			Path:             "/" + params.Stage + r.URL.Path,
			Protocol:         r.Proto,
			RequestTime:      params.Time.UTC().Format(requestTimeLayout),
			RequestTimeEpoch: params.Time.UnixMilli(),
		},
	}

	if len(r.Header) > 0 {
		event.Headers = make(map[string]string, len(r.Header))
		event.MultiValueHeaders = make(map[string][]string, len(r.Header))
		for name, values := range r.Header {
			event.Headers[name] = values[len(values)-1]
			event.MultiValueHeaders[name] = values
		}
	}

	if query := r.URL.Query(); len(query) > 0 {
		event.QueryStringParameters = make(map[string]string, len(query))
		event.MultiValueQueryStringParameters = make(map[string][]string, len(query))
		for name, values := range query {
			event.QueryStringParameters[name] = values[len(values)-1]
			event.MultiValueQueryStringParameters[name] = values
		}
	}

	if len(body) > 0 {
		if utf8.Valid(body) {
			event.Body = string(body)
		} else {
			event.Body = base64.StdEncoding.EncodeToString(body)
			event.IsBase64Encoded = true
		}
	}

	return event, nil
}

// sourceIP returns the client address of r.
func sourceIP(r *http.Request, header string) string {
	if header != "" {
		if value := r.Header.Get(header); value != "" {
			ip, _, _ := strings.Cut(value, ",")
			return strings.TrimSpace(ip)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
