package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrForbidden is matched by every ForbiddenError
	ErrForbidden = errors.New("operation forbidden")

	// ErrUnhealthy is returned while the health checker considers the connection down
	ErrUnhealthy = errors.New("database connection is not healthy")
)

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%v' not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ForbiddenError reports an operation rejected by a business rule
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

func notFound(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func forbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}
