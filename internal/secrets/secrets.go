// Package secrets resolves named secret strings.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var ErrNotFound = errors.New("secret not found")

type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// API is the subset of the Secrets Manager client used here.
type API interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManager struct {
	client API
}

func NewClient(cfg aws.Config, endpoint string) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func NewSecretsManager(client API) *SecretsManager {
	return &SecretsManager{client: client}
}

func (s *SecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value: %w", name, ErrNotFound)
	}
	return *out.SecretString, nil
}

// Static serves secrets from a fixed map.
type Static map[string]string

func (s Static) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return v, nil
}
