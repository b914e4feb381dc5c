// Package secrets resolves configuration values that reference AWS Secrets
// Manager instead of holding a credential directly.
//
// A value of the form "awssm://<secret-id>" is replaced by the secret string;
// "awssm://<secret-id>#<key>" selects one key of a JSON secret. Any other
// value is returned unchanged, so plain tokens keep working.
//
// Only secret ids and operation metadata are logged, never values.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// ReferencePrefix marks a value stored in AWS Secrets Manager.
const ReferencePrefix = "awssm://"

// AWS error code constants
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Client reads secrets from AWS Secrets Manager.
type Client struct {
	api    ManagerAPI
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for secret operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client from the default AWS configuration chain
// (environment, shared config, instance role).
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientWithAPI(secretsmanager.NewFromConfig(cfg), opts...), nil
}

// NewClientWithAPI creates a client on top of an existing API implementation.
func NewClientWithAPI(api ManagerAPI, opts ...Option) *Client {
	c := &Client{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsReference reports whether value points at a stored secret.
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}

// Resolve returns value itself, or the secret it references.
func (c *Client) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}

	secretID, key, _ := strings.Cut(strings.TrimPrefix(value, ReferencePrefix), "#")
	if secretID == "" {
		return "", fmt.Errorf("%w: %q has no secret id", ErrInvalidRef, value)
	}

	secret, err := c.GetSecret(ctx, secretID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return strings.TrimSpace(secret), nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", fmt.Errorf("%w: secret %s is not a JSON object", ErrInvalidRef, secretID)
	}
	field, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: secret %s has no key %q", ErrInvalidRef, secretID, key)
	}
	return strings.TrimSpace(fmt.Sprint(field)), nil
}

// GetSecret returns the string value of secretID.
func (c *Client) GetSecret(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret name cannot be empty")
	}

	c.logger.InfoContext(ctx, "retrieving secret", "secret_name", secretID)

	output, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case ResourceNotFoundException:
				return "", fmt.Errorf("GetSecret %s: %w", secretID, ErrSecretNotFound)
			case AccessDeniedException:
				return "", fmt.Errorf("GetSecret %s: %w", secretID, ErrAccessDenied)
			}
			c.logger.WarnContext(ctx, "failed to retrieve secret", "secret_name", secretID, "error", err)
			return "", fmt.Errorf("GetSecret operation failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}

		c.logger.WarnContext(ctx, "failed to retrieve secret", "secret_name", secretID, "error", err)
		return "", fmt.Errorf("GetSecret operation failed: %w", err)
	}

	switch {
	case output.SecretString != nil && *output.SecretString != "":
		return *output.SecretString, nil
	case len(output.SecretBinary) > 0:
		return string(output.SecretBinary), nil
	default:
		return "", fmt.Errorf("GetSecret %s: %w", secretID, ErrSecretEmpty)
	}
}
