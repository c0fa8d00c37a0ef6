package storage

import "errors"

var (
	// ErrNodeNotFound is returned when a client node is not found
	ErrNodeNotFound = errors.New("node not found")

	// ErrCredentialNotFound is returned when no credential exists for a provider
	ErrCredentialNotFound = errors.New("provider credential not found")

	// ErrServiceTokenNotFound is returned when a service token is not found
	ErrServiceTokenNotFound = errors.New("service token not found")
)
