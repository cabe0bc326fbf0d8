// Package ssm adapts AWS Systems Manager Parameter Store to store.Store.
//
// Importing the package registers the "ssm" backend in
// store.DefaultRegistry.
package ssm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/jonwraymond/paramcache/store"
)

// ErrNilClient is returned by New when no client is given.
var ErrNilClient = errors.New("ssm store: nil client")

// API is the subset of the SSM client used by Store.
type API interface {
	GetParameter(ctx context.Context, params *awsssm.GetParameterInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParameterOutput, error)
	GetParameters(ctx context.Context, params *awsssm.GetParametersInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParametersOutput, error)
}

// Store reads parameters from Parameter Store.
type Store struct {
	api API
}

var _ store.Store = (*Store)(nil)

// New wraps an SSM client.
func New(api API) (*Store, error) {
	if api == nil {
		return nil, ErrNilClient
	}
	return &Store{api: api}, nil
}

// FetchOne calls GetParameter. ParameterNotFound becomes store.ErrKeyNotFound.
func (s *Store) FetchOne(ctx context.Context, key string, decrypt bool) (string, error) {
	out, err := s.api.GetParameter(ctx, &awsssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", store.ErrKeyNotFound, key)
		}
		return "", err
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("%w: %s", store.ErrKeyNotFound, key)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// FetchMany calls GetParameters once for up to store.MaxBatchSize names.
func (s *Store) FetchMany(ctx context.Context, keys []string, decrypt bool) (store.Result, error) {
	if len(keys) > store.MaxBatchSize {
		return store.Result{}, store.ErrBatchTooLarge
	}
	if len(keys) == 0 {
		return store.Result{Found: map[string]string{}}, nil
	}

	out, err := s.api.GetParameters(ctx, &awsssm.GetParametersInput{
		Names:          keys,
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return store.Result{}, err
	}

	res := store.Result{
		Found:   make(map[string]string, len(out.Parameters)),
		Invalid: out.InvalidParameters,
	}
	for _, p := range out.Parameters {
		res.Found[requestedName(p)] = aws.ToString(p.Value)
	}
	return res, nil
}

// requestedName rebuilds the name as it was requested. The response omits
// any version or label selector ("/app/db:3") from Name.
func requestedName(p types.Parameter) string {
	return aws.ToString(p.Name) + aws.ToString(p.Selector)
}
