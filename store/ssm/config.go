package ssm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/jonwraymond/paramcache/store"
)

func init() {
	store.DefaultRegistry.MustRegister("ssm", Factory)
}

// options holds optional overrides for AWS config loading.
type options struct {
	profile     string
	region      string
	endpoint    string
	maxAttempts int
}

// Option customizes how the SSM client is built.
// With no options the shell environment and shared config chain apply
// (AWS_PROFILE, ~/.aws/config, ~/.aws/credentials, IMDS).
type Option func(*options)

// WithProfile sets the shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithRegion sets the region override.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at a custom endpoint, e.g. LocalStack.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithMaxAttempts sets the SDK's own retry budget. Zero keeps the SDK default.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// NewFromEnv loads AWS config and returns a Store backed by a new SSM client.
func NewFromEnv(ctx context.Context, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.maxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(so *retry.StandardOptions) {
				so.MaxAttempts = o.maxAttempts
			})
		}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("ssm store: load aws config: %w", err)
	}

	client := awsssm.NewFromConfig(cfg, func(so *awsssm.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
	})
	return New(client)
}

// Factory builds a Store from the "profile", "region", "endpoint" and
// "max_attempts" options.
func Factory(ctx context.Context, opts store.Options) (store.Store, error) {
	profile, err := opts.String("profile", "")
	if err != nil {
		return nil, err
	}
	region, err := opts.String("region", "")
	if err != nil {
		return nil, err
	}
	endpoint, err := opts.String("endpoint", "")
	if err != nil {
		return nil, err
	}
	maxAttempts, err := opts.Int("max_attempts", 0)
	if err != nil {
		return nil, err
	}

	return NewFromEnv(ctx,
		WithProfile(profile),
		WithRegion(region),
		WithEndpoint(endpoint),
		WithMaxAttempts(maxAttempts),
	)
}
