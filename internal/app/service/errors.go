package service

import "errors"

// Failure kinds reported by UserService. They are returned wrapped with
// detail, match them with errors.Is.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
