package cfn

import "github.com/awslabs/goformation/v7/cloudformation"

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement is a single statement of an IAM policy document.
type PolicyStatement struct {
	Effect    string         `json:"Effect"`
	Principal map[string]any `json:"Principal,omitempty"`
	Action    any            `json:"Action"`
	Resource  any            `json:"Resource,omitempty"`
}

// AssumeRolePolicy returns the trust policy allowing the given service
// principal to assume a role.
func AssumeRolePolicy(service string) PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []PolicyStatement{
			{
				Effect:    "Allow",
				Principal: map[string]any{"Service": service},
				Action:    "sts:AssumeRole",
			},
		},
	}
}

// ManagedPolicyArn returns the ARN of an AWS managed policy, resolved in the
// partition the stack is deployed to.
func ManagedPolicyArn(name string) string {
	return cloudformation.Sub("arn:${AWS::Partition}:iam::aws:policy/" + name)
}

// Optional returns nil for an empty string, leaving the property unset.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return cloudformation.String(s)
}
