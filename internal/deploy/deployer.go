// Package deploy provisions a stack through the AWS control plane: it
// uploads the function package, creates or updates the CloudFormation stack
// and waits for it to settle.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hello-stack/stack"
)

var (
	// ErrAccountMismatch is returned when the credentials belong to another
	// account than the one the stack is pinned to.
	ErrAccountMismatch = errors.New("credentials belong to a different account")

	// ErrStackFailed is returned when the stack ends in a failed or rolled
	// back state.
	ErrStackFailed = errors.New("stack operation failed")

	errStackInProgress = errors.New("stack operation in progress")
)

type Config struct {
	// Bucket is the S3 bucket function packages are uploaded to. Empty
	// derives a bucket name from the account and region.
	Bucket string `conf:"bucket"`

	// Prefix is prepended to the object keys of uploaded packages.
	Prefix string `conf:"prefix"`

	// PollInterval is the delay between stack status checks.
	PollInterval time.Duration `conf:"poll_interval" validate:"gt=0"`

	// Timeout bounds the wait for a stack operation.
	Timeout time.Duration `conf:"timeout" validate:"gt=0"`
}

// DefaultConfig returns the deploy defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:       "assets/",
		PollInterval: 5 * time.Second,
		Timeout:      30 * time.Minute,
	}
}

// Result describes a settled stack.
type Result struct {
	StackID string
	Status  string
	Outputs map[string]string
}

type Params struct {
	// Config is the deploy config.
	Config Config

	// Region is the region the stack lives in.
	Region string

	// Clients are the AWS clients to use.
	Clients Clients

	// Log is the logger to use for the deployer.
	Log *zap.Logger
}

// Deployer provisions and removes stacks.
type Deployer struct {
	config  Config
	region  string
	clients Clients
	log     *zap.Logger
}

func New(params Params) *Deployer {
	return &Deployer{
		config:  params.Config,
		region:  params.Region,
		clients: params.Clients,
		log:     params.Log.Named("deploy"),
	}
}

// Deploy uploads the function package of s and creates or updates the
// stack. It returns once the stack has settled.
func (d *Deployer) Deploy(ctx context.Context, s *stack.Stack) (*Result, error) {
	log := d.log.With(zap.String("stack", s.Name()))

	account, err := d.account(ctx, s.Config().Account)
	if err != nil {
		return nil, err
	}

	asset, err := Package(s.Function().Asset)
	if err != nil {
		return nil, err
	}

	bucket := d.bucket(account)
	key := asset.Key(d.config.Prefix)

	if err := d.upload(ctx, bucket, key, asset); err != nil {
		return nil, err
	}

	body, err := s.Template().JSON()
	if err != nil {
		return nil, err
	}

	params := parameters(s.CodeParameters(bucket, key))
	capabilities := []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}

	current, err := d.lookup(ctx, s.Name())
	if err != nil {
		return nil, err
	}

	// a stack whose creation rolled back cannot be updated, only replaced
	if current != nil && current.StackStatus == cfntypes.StackStatusRollbackComplete {
		log.Info("replacing rolled back stack")

		if err := d.delete(ctx, s.Name()); err != nil {
			return nil, err
		}
		current = nil
	}

	if current == nil {
		log.Info("creating stack")

		_, err = d.clients.CloudFormation.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(s.Name()),
			TemplateBody: aws.String(string(body)),
			Parameters:   params,
			Capabilities: capabilities,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating stack: %w", err)
		}
	} else {
		log.Info("updating stack")

		_, err = d.clients.CloudFormation.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(s.Name()),
			TemplateBody: aws.String(string(body)),
			Parameters:   params,
			Capabilities: capabilities,
		})
		if isNoUpdates(err) {
			log.Info("stack is up to date")
			return d.Describe(ctx, s.Name())
		}
		if err != nil {
			return nil, fmt.Errorf("error updating stack: %w", err)
		}
	}

	res, err := d.wait(ctx, s.Name(), false)
	if err != nil {
		return nil, err
	}

	log.Info("stack deployed", zap.String("status", res.Status), zap.Any("outputs", res.Outputs))

	return res, nil
}

// Destroy deletes the stack and waits until it is gone.
func (d *Deployer) Destroy(ctx context.Context, name string) error {
	log := d.log.With(zap.String("stack", name))

	current, err := d.lookup(ctx, name)
	if err != nil {
		return err
	}

	if current == nil {
		log.Info("stack does not exist")
		return nil
	}

	log.Info("deleting stack")

	if err := d.delete(ctx, name); err != nil {
		return err
	}

	log.Info("stack deleted")

	return nil
}

// delete deletes the stack and waits until it is gone.
func (d *Deployer) delete(ctx context.Context, name string) error {
	_, err := d.clients.CloudFormation.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("error deleting stack: %w", err)
	}

	if _, err := d.wait(ctx, name, true); err != nil {
		return err
	}

	return nil
}

// Describe returns the current state of the stack.
func (d *Deployer) Describe(ctx context.Context, name string) (*Result, error) {
	out, err := d.clients.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, err
	}

	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", name)
	}

	return result(out.Stacks[0]), nil
}

func (d *Deployer) account(ctx context.Context, expected string) (string, error) {
	out, err := d.clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("error getting caller identity: %w", err)
	}

	account := aws.ToString(out.Account)
	if expected != "" && account != expected {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrAccountMismatch, expected, account)
	}

	return account, nil
}

func (d *Deployer) bucket(account string) string {
	if d.config.Bucket != "" {
		return d.config.Bucket
	}
	return fmt.Sprintf("hello-stack-assets-%s-%s", account, d.region)
}

// upload stores the asset under key unless it is already present. The
// bucket is created when it does not exist.
func (d *Deployer) upload(ctx context.Context, bucket, key string, asset *Asset) error {
	log := d.log.With(zap.String("bucket", bucket), zap.String("key", key))

	if err := d.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	_, err := d.clients.S3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		log.Debug("asset already uploaded")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("error checking asset: %w", err)
	}

	log.Info("uploading asset", zap.Int("size", len(asset.Data)))

	_, err = d.clients.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(asset.Data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("error uploading asset: %w", err)
	}

	return nil
}

func (d *Deployer) ensureBucket(ctx context.Context, bucket string) error {
	_, err := d.clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("error checking bucket: %w", err)
	}

	d.log.Info("creating bucket", zap.String("bucket", bucket))

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if d.region != "" && d.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(d.region),
		}
	}

	if _, err := d.clients.S3.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("error creating bucket: %w", err)
	}

	return nil
}

// lookup returns the live stack named name, or nil when there is none.
func (d *Deployer) lookup(ctx context.Context, name string) (*cfntypes.Stack, error) {
	out, err := d.clients.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if isStackMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error describing stack: %w", err)
	}

	for i := range out.Stacks {
		if out.Stacks[i].StackStatus != cfntypes.StackStatusDeleteComplete {
			return &out.Stacks[i], nil
		}
	}

	return nil, nil
}

// wait polls the stack until it reaches a terminal status. When deleting,
// a stack that no longer exists counts as settled.
func (d *Deployer) wait(ctx context.Context, name string, deleting bool) (*Result, error) {
	var res *Result

	attempts := uint(d.config.Timeout / d.config.PollInterval)
	if attempts < 1 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			out, err := d.clients.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
				StackName: aws.String(name),
			})
			if deleting && isStackMissing(err) {
				res = &Result{Status: string(cfntypes.StackStatusDeleteComplete)}
				return nil
			}
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("error describing stack: %w", err))
			}
			if len(out.Stacks) == 0 {
				return retry.Unrecoverable(fmt.Errorf("stack %s not found", name))
			}

			s := out.Stacks[0]
			status := string(s.StackStatus)

			switch {
			case strings.HasSuffix(status, "_IN_PROGRESS"):
				return fmt.Errorf("%w: %s", errStackInProgress, status)
			case settled(s.StackStatus, deleting):
				res = result(s)
				return nil
			default:
				return retry.Unrecoverable(fmt.Errorf("%w: %s: %s",
					ErrStackFailed, status, aws.ToString(s.StackStatusReason)))
			}
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(d.config.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.log.Debug("waiting for stack", zap.String("stack", name), zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	return res, nil
}

func settled(status cfntypes.StackStatus, deleting bool) bool {
	if deleting {
		return status == cfntypes.StackStatusDeleteComplete
	}
	return status == cfntypes.StackStatusCreateComplete ||
		status == cfntypes.StackStatusUpdateComplete
}

func result(s cfntypes.Stack) *Result {
	outputs := make(map[string]string, len(s.Outputs))
	for _, o := range s.Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}

	return &Result{
		StackID: aws.ToString(s.StackId),
		Status:  string(s.StackStatus),
		Outputs: outputs,
	}
}

func parameters(values map[string]string) []cfntypes.Parameter {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]cfntypes.Parameter, 0, len(keys))
	for _, k := range keys {
		params = append(params, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(values[k]),
		})
	}
	return params
}
