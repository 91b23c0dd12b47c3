package store

import "fmt"

// StorageError is a failure in a policy store backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "open", "load", "save", "delete", ...
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("policy store %s: %s: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError wraps cause as a failure of operation on backend.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
