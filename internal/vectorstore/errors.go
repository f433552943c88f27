package vectorstore

import "errors"

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates a collection name that fails validation.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("connection failed")
)
