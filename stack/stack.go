// Package stack declares the hello world deployment: a function fronted by a
// REST API, its roles, the invoke permission and the deployment stage.
//
// The declaration is built once from a Config. It can be synthesized into a
// CloudFormation template and, from the same declaration, into the
// Deployment the local gateway serves.
package stack

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/apigateway"
	"github.com/awslabs/goformation/v7/cloudformation/iam"
	"github.com/awslabs/goformation/v7/cloudformation/lambda"

	"github.com/lambda-feedback/hello-stack/internal/cfn"
	"github.com/lambda-feedback/hello-stack/util/validation"
)

// Logical ids of the declared resources.
const (
	LambdaRoleID       = "LambdaRole"
	FunctionID         = "HelloHandler"
	ApiRoleID          = "APIGatewayRole"
	ApiAccountID       = "APIGatewayAccount"
	RestApiID          = "APIGatewayRestApi"
	ApiResourceID      = "APIGatewayResource"
	ApiMethodID        = "APIGatewayMethod"
	ApiDeploymentID    = "APIGatewayDeployment"
	InvokePermissionID = "APIGatewayLambdaInvokePermission"
)

// Template parameters set at deploy time.
const (
	CodeBucketParameter = FunctionID + "CodeBucket"
	CodeKeyParameter    = FunctionID + "CodeKey"
)

// Template outputs.
const (
	OutputApiUrl       = "ApiUrl"
	OutputFunctionName = "FunctionName"
	OutputFunctionArn  = "FunctionArn"
	OutputRestApiId    = "RestApiId"
)

const lambdaApiVersion = "2015-03-31"

var (
	ErrInvalidConfig   = errors.New("invalid stack config")
	ErrActivationOrder = errors.New("deployment is not ordered after its route bindings")
)

// Stack is a built stack declaration.
type Stack struct {
	config     Config
	template   *cfn.Template
	deployment Deployment
	function   FunctionSpec
}

// New validates cfg and declares the stack.
func New(cfg Config) (*Stack, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Function.Timeout%time.Second != 0 {
		return nil, fmt.Errorf("%w: function timeout must be a whole number of seconds", ErrInvalidConfig)
	}

	s := &Stack{config: cfg}

	b := cfn.NewBuilder(fmt.Sprintf("%s: %s %s fronted by REST API %s",
		cfg.Name, cfg.Function.Name, cfg.Function.Runtime, cfg.Api.Name))

	codeBucket := b.Parameter(CodeBucketParameter, cloudformation.Parameter{
		Type:        "String",
		Description: cloudformation.String("S3 bucket holding the function deployment package"),
	})
	codeKey := b.Parameter(CodeKeyParameter, cloudformation.Parameter{
		Type:        "String",
		Description: cloudformation.String("S3 key of the function deployment package"),
	})

	lambdaRole := b.Add(LambdaRoleID, &iam.Role{
		AssumeRolePolicyDocument: cfn.AssumeRolePolicy("lambda.amazonaws.com"),
		ManagedPolicyArns: []string{
			cfn.ManagedPolicyArn("AWSLambda_FullAccess"),
			cfn.ManagedPolicyArn("service-role/AWSLambdaBasicExecutionRole"),
		},
		Path:     cloudformation.String("/"),
		RoleName: cfn.Optional(cfg.Function.RoleName),
	})

	function := &lambda.Function{
		FunctionName: cfn.Optional(cfg.Function.Name),
		Handler:      cfn.Optional(cfg.Function.Handler),
		Runtime:      cfn.Optional(cfg.Function.Runtime),
		Role:         lambdaRole.GetAtt("Arn"),
		Code: &lambda.Function_Code{
			S3Bucket: cloudformation.String(codeBucket),
			S3Key:    cloudformation.String(codeKey),
		},
		MemorySize: cloudformation.Int(cfg.Function.MemorySize),
		Timeout:    cloudformation.Int(int(cfg.Function.Timeout / time.Second)),
		TracingConfig: &lambda.Function_TracingConfig{
			Mode: cfn.Optional(cfg.Function.Tracing),
		},
	}
	if cfg.Function.Architecture != "" {
		function.Architectures = []string{cfg.Function.Architecture}
	}
	if len(cfg.Function.Environment) > 0 {
		function.Environment = &lambda.Function_Environment{Variables: cfg.Function.Environment}
	}
	fn := b.Add(FunctionID, function)

	apiRole := b.Add(ApiRoleID, &iam.Role{
		AssumeRolePolicyDocument: cfn.AssumeRolePolicy(PrincipalApiGateway),
		ManagedPolicyArns: []string{
			cfn.ManagedPolicyArn("service-role/AmazonAPIGatewayPushToCloudWatchLogs"),
		},
		Path:     cloudformation.String("/"),
		RoleName: cfn.Optional(cfg.Api.RoleName),
	})

	b.Add(ApiAccountID, &apigateway.Account{
		CloudWatchRoleArn: cloudformation.String(apiRole.GetAtt("Arn")),
	})

	restApi := b.Add(RestApiID, &apigateway.RestApi{Name: cloudformation.String(cfg.Api.Name)})

	resource := b.Add(ApiResourceID, &apigateway.Resource{
		RestApiId: restApi.Ref(),
		ParentId:  restApi.GetAtt("RootResourceId"),
		PathPart:  cfg.Api.PathPart,
	})

	route := RouteBinding{
		Method:            cfg.Api.Method,
		Path:              "/" + cfg.Api.PathPart,
		Function:          FunctionRef(fn.LogicalID()),
		AuthorizationType: AuthorizationNone,
		IntegrationType:   IntegrationAwsProxy,
		MethodResponses:   []int{http.StatusOK},
	}

	methodResponses := make([]apigateway.Method_MethodResponse, 0, len(route.MethodResponses))
	for _, code := range statusCodes(route.MethodResponses) {
		methodResponses = append(methodResponses, apigateway.Method_MethodResponse{StatusCode: code})
	}

	method := b.Add(ApiMethodID, &apigateway.Method{
		AuthorizationType: cloudformation.String(route.AuthorizationType),
		HttpMethod:        route.Method,
		Integration: &apigateway.Method_Integration{
			Type:                  route.IntegrationType,
			IntegrationHttpMethod: cloudformation.String(http.MethodPost),
			Uri:                   cloudformation.String(integrationUri(fn)),
			TimeoutInMillis:       cloudformation.Int(int(cfg.Api.IntegrationTimeout / time.Millisecond)),
		},
		MethodResponses: methodResponses,
		ResourceId:      resource.Ref(),
		RestApiId:       restApi.Ref(),
	})

	var grants []PermissionGrant
	activation := []cfn.Handle{method}

	var permission cfn.Handle
	if cfg.Api.GrantInvoke {
		grant := PermissionGrant{
			Action:       ActionInvokeFunction,
			Principal:    PrincipalApiGateway,
			Function:     route.Function,
			SourceStage:  "*",
			SourceMethod: route.Method,
			SourcePath:   route.Path,
		}
		if grant.SourceMethod == MethodAny {
			grant.SourceMethod = "*"
		}
		grants = append(grants, grant)

		permission = b.Add(InvokePermissionID, &lambda.Permission{
			Action:       grant.Action,
			FunctionName: fn.Ref(),
			Principal:    grant.Principal,
			SourceArn:    cloudformation.String(executeApiArn(restApi, grant.sourceArnSuffix())),
		})
		activation = append(activation, permission)
	}

	deployment := b.Add(ApiDeploymentID, &apigateway.Deployment{
		RestApiId: restApi.Ref(),
		StageName: cloudformation.String(cfg.Api.Stage.Name),
		StageDescription: &apigateway.Deployment_StageDescription{
			DataTraceEnabled: cloudformation.Bool(cfg.Api.Stage.DataTraceEnabled),
			LoggingLevel:     cloudformation.String(cfg.Api.Stage.LoggingLevel),
			MetricsEnabled:   cloudformation.Bool(cfg.Api.Stage.MetricsEnabled),
			TracingEnabled:   cloudformation.Bool(cfg.Api.Stage.TracingEnabled),
		},
		AWSCloudFormationDependsOn: cfn.LogicalIDs(activation...),
	})

	b.Output(OutputApiUrl, cloudformation.Output{
		Description: cloudformation.String("Invoke URL of the route"),
		Value: cloudformation.Sub(fmt.Sprintf(
			"https://%s.execute-api.${AWS::Region}.${AWS::URLSuffix}/%s%s",
			restApi.Var(""), cfg.Api.Stage.Name, route.Path,
		)),
	})
	b.Output(OutputFunctionName, cloudformation.Output{Value: fn.Ref()})
	b.Output(OutputFunctionArn, cloudformation.Output{Value: fn.GetAtt("Arn")})
	b.Output(OutputRestApiId, cloudformation.Output{Value: restApi.Ref()})

	tmpl, err := b.Synth()
	if err != nil {
		return nil, err
	}

	if !tmpl.DependsOn(deployment.LogicalID(), method.LogicalID()) {
		return nil, fmt.Errorf("%w: %s", ErrActivationOrder, method.LogicalID())
	}
	if !permission.IsZero() && !tmpl.DependsOn(deployment.LogicalID(), permission.LogicalID()) {
		return nil, fmt.Errorf("%w: %s", ErrActivationOrder, permission.LogicalID())
	}

	s.template = tmpl
	s.deployment = Deployment{
		ApiName: cfg.Api.Name,
		Region:  cfg.Region,
		Account: cfg.Account,
		Stage: StageSettings{
			Name:             cfg.Api.Stage.Name,
			DataTraceEnabled: cfg.Api.Stage.DataTraceEnabled,
			LoggingLevel:     cfg.Api.Stage.LoggingLevel,
			MetricsEnabled:   cfg.Api.Stage.MetricsEnabled,
			TracingEnabled:   cfg.Api.Stage.TracingEnabled,
		},
		Routes:             []RouteBinding{route},
		Grants:             grants,
		IntegrationTimeout: cfg.Api.IntegrationTimeout,
	}
	s.function = FunctionSpec{
		ID:          FunctionRef(fn.LogicalID()),
		Name:        cfg.Function.Name,
		Runtime:     cfg.Function.Runtime,
		Handler:     cfg.Function.Handler,
		MemorySize:  cfg.Function.MemorySize,
		Timeout:     cfg.Function.Timeout,
		Environment: cfg.Function.Environment,
		Tracing:     cfg.Function.Tracing,
		Asset:       cfg.Function.Asset,
	}

	return s, nil
}

// Name returns the CloudFormation stack name.
func (s *Stack) Name() string {
	return s.config.Name
}

// Config returns the config the stack was built from.
func (s *Stack) Config() Config {
	return s.config
}

// Template returns the synthesized CloudFormation template.
func (s *Stack) Template() *cfn.Template {
	return s.template
}

// Deployment returns the routes, grants and stage of the API.
func (s *Stack) Deployment() Deployment {
	return s.deployment.clone()
}

// Function describes the compute unit.
func (s *Stack) Function() FunctionSpec {
	fn := s.function
	fn.Environment = maps.Clone(s.function.Environment)
	return fn
}

// CodeParameters returns the template parameter values pointing the
// function at a deployment package in S3.
func (s *Stack) CodeParameters(bucket, key string) map[string]string {
	return map[string]string{
		CodeBucketParameter: bucket,
		CodeKeyParameter:    key,
	}
}

// integrationUri returns the Lambda invocation URI of fn, resolved by
// CloudFormation from the function's Arn attribute.
func integrationUri(fn cfn.Handle) string {
	return cloudformation.Sub(fmt.Sprintf(
		"arn:${AWS::Partition}:apigateway:${AWS::Region}:lambda:path/%s/functions/%s/invocations",
		lambdaApiVersion, fn.Var("Arn"),
	))
}

// executeApiArn returns the execute-api ARN of api restricted to suffix.
func executeApiArn(api cfn.Handle, suffix string) string {
	return cloudformation.Sub(fmt.Sprintf(
		"arn:${AWS::Partition}:execute-api:${AWS::Region}:${AWS::AccountId}:%s/%s",
		api.Var(""), suffix,
	))
}
