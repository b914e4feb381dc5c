package secrets

import "errors"

var (
	// ErrSecretNotFound is returned when the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when a secret exists but holds no value.
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the credentials may not read the secret.
	ErrAccessDenied = errors.New("access denied to secret")

	// ErrInvalidRef is returned when a secret reference is malformed or its
	// JSON key is missing from the secret.
	ErrInvalidRef = errors.New("invalid secret reference")
)
