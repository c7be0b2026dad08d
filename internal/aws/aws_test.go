package aws

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTS struct {
	err error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/deployer"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil
}

func TestCallerIdentity(t *testing.T) {
	id, err := CallerIdentity(context.Background(), &fakeSTS{})
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:user/deployer", id.Arn)
	assert.Equal(t, "AIDAEXAMPLE", id.UserID)

	_, err = CallerIdentity(context.Background(), &fakeSTS{err: fmt.Errorf("expired token")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired token")
}

func TestProfileOrDefault(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	assert.Equal(t, "default", profileOrDefault(""))
	assert.Equal(t, "signer", profileOrDefault("signer"))

	t.Setenv("AWS_PROFILE", "ops")
	assert.Equal(t, "ops", profileOrDefault(""))
	assert.Equal(t, "signer", profileOrDefault("signer"))
}
