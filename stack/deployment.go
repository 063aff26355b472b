package stack

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// MethodAny matches every HTTP method.
	MethodAny = "ANY"

	// AuthorizationNone lets any caller reach a route.
	AuthorizationNone = "NONE"

	// IntegrationAwsProxy hands the whole request to the function and
	// relays its response verbatim.
	IntegrationAwsProxy = "AWS_PROXY"

	// ActionInvokeFunction is the permission needed to invoke a function.
	ActionInvokeFunction = "lambda:InvokeFunction"

	// PrincipalApiGateway is the service principal of API Gateway.
	PrincipalApiGateway = "apigateway.amazonaws.com"

	// LocalAccount is reported when a deployment is not pinned to an
	// account.
	LocalAccount = "000000000000"
)

// FunctionRef identifies a function by its logical id in the stack.
type FunctionRef string

// RouteBinding binds an HTTP method and path to a function.
type RouteBinding struct {
	Method            string
	Path              string
	Function          FunctionRef
	AuthorizationType string
	IntegrationType   string
	MethodResponses   []int
}

// Methods returns the HTTP methods the route accepts.
func (r RouteBinding) Methods() []string {
	if r.Method == MethodAny {
		return []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}
	}
	return []string{r.Method}
}

// Declares reports whether status is one of the route's method responses.
func (r RouteBinding) Declares(status int) bool {
	for _, s := range r.MethodResponses {
		if s == status {
			return true
		}
	}
	return false
}

func (r RouteBinding) String() string {
	return r.Method + " " + r.Path
}

// PermissionGrant allows a principal to perform an action on a function,
// restricted to requests for a stage, method and path. "*" matches any
// stage or method.
type PermissionGrant struct {
	Action       string
	Principal    string
	Function     FunctionRef
	SourceStage  string
	SourceMethod string
	SourcePath   string
}

// Allows reports whether the grant lets principal invoke fn for a request
// to stage with the given method and path.
func (g PermissionGrant) Allows(principal string, fn FunctionRef, stage, method, path string) bool {
	if g.Action != ActionInvokeFunction || g.Principal != principal || g.Function != fn {
		return false
	}
	if g.SourceStage != "*" && g.SourceStage != stage {
		return false
	}
	if g.SourceMethod != "*" && g.SourceMethod != method {
		return false
	}
	return g.SourcePath == path
}

// sourceArnSuffix renders the execute-api ARN resource part, relative to the
// API id: <stage>/<method>/<path without leading slash>.
func (g PermissionGrant) sourceArnSuffix() string {
	return fmt.Sprintf("%s/%s%s", g.SourceStage, g.SourceMethod, g.SourcePath)
}

// StageSettings configures telemetry of a deployment stage.
type StageSettings struct {
	Name             string
	DataTraceEnabled bool
	LoggingLevel     string
	MetricsEnabled   bool
	TracingEnabled   bool
}

// Deployment is the immutable, activated configuration of the API: the
// stage, its routes and the grants the routes rely on.
type Deployment struct {
	ApiName            string
	Region             string
	Account            string
	Stage              StageSettings
	Routes             []RouteBinding
	Grants             []PermissionGrant
	IntegrationTimeout time.Duration
}

// Authorized reports whether the API may invoke the route's function for a
// request using method.
func (d Deployment) Authorized(route RouteBinding, method string) bool {
	for _, grant := range d.Grants {
		if grant.Allows(PrincipalApiGateway, route.Function, d.Stage.Name, method, route.Path) {
			return true
		}
	}
	return false
}

// clone returns a copy of d that shares no slices with it.
func (d Deployment) clone() Deployment {
	out := d
	out.Routes = make([]RouteBinding, len(d.Routes))
	for i, route := range d.Routes {
		route.MethodResponses = append([]int(nil), route.MethodResponses...)
		out.Routes[i] = route
	}
	out.Grants = append([]PermissionGrant(nil), d.Grants...)
	return out
}

// FunctionSpec describes the sizing and environment of a function.
type FunctionSpec struct {
	ID          FunctionRef
	Name        string
	Runtime     string
	Handler     string
	MemorySize  int
	Timeout     time.Duration
	Environment map[string]string
	Tracing     string
	Asset       string
}

// Arn returns the ARN of the function in the given region and account.
func (f FunctionSpec) Arn(region, account string) string {
	return fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", region, account, f.Name)
}

func statusCodes(codes []int) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = strconv.Itoa(c)
	}
	return out
}
