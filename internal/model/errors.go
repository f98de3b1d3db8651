package model

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("authentication required")
	// ErrNotFound also covers tasks owned by someone else.
	ErrNotFound    = errors.New("task not found")
	ErrPersistence = errors.New("persistence error")
)

// ErrUserNotFound is internal to the store layer; callers facing clients
// translate it before it leaves the service.
var ErrUserNotFound = errors.New("user not found")
