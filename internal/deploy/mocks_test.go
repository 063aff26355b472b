package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/mock"
)

type mockCloudFormation struct {
	mock.Mock
}

func (m *mockCloudFormation) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudformation.CreateStackOutput)
	return out, args.Error(1)
}

func (m *mockCloudFormation) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudformation.UpdateStackOutput)
	return out, args.Error(1)
}

func (m *mockCloudFormation) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudformation.DeleteStackOutput)
	return out, args.Error(1)
}

func (m *mockCloudFormation) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudformation.DescribeStacksOutput)
	return out, args.Error(1)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func (m *mockS3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CreateBucketOutput)
	return out, args.Error(1)
}

func (m *mockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

type mockSTS struct {
	mock.Mock
}

func (m *mockSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sts.GetCallerIdentityOutput)
	return out, args.Error(1)
}
