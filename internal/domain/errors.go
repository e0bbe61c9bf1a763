package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// DuplicateError represents a uniqueness violation, most importantly a
// certificate content hash collision.
type DuplicateError struct {
	Resource string
	Key      string
}

func (e DuplicateError) Error() string {
	if e.Resource == "" {
		return "already exists"
	}
	if e.Key == "" {
		return fmt.Sprintf("%s already exists", e.Resource)
	}
	return fmt.Sprintf("%s with key %s already exists", e.Resource, e.Key)
}

func (e DuplicateError) Is(target error) bool {
	_, ok := target.(DuplicateError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateError)
	return ok
}

// ErrDuplicate is the sentinel error for uniqueness violations.
var ErrDuplicate = DuplicateError{}

// ValidationError represents malformed input, rejected before side effects.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	if e.Message == "" {
		return "invalid input"
	}
	return e.Message
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

// ErrValidation is the sentinel error for malformed input.
var ErrValidation = ValidationError{}

// ExternalServiceError represents an unreachable or failing external
// dependency (metadata store, ledger). Under the fail-closed policy this
// surfaces to the caller; under fail-open the gateways swallow it and
// substitute synthetic data.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Service)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e ExternalServiceError) Unwrap() error {
	return e.Err
}

func (e ExternalServiceError) Is(target error) bool {
	_, ok := target.(ExternalServiceError)
	if ok {
		return true
	}
	_, ok = target.(*ExternalServiceError)
	return ok
}

// ErrExternalService is the sentinel error for failing external systems.
var ErrExternalService = ExternalServiceError{}
