package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches, or when a conditional
	// update found the row already in a different state.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateToken is returned when a refresh token value already exists.
	ErrDuplicateToken = errors.New("refresh token value already exists")
)

// postgres unique_violation
const pqUniqueViolation = "23505"

// ErrDuplicateEmail is returned when a user with the same email exists.
var ErrDuplicateEmail = errors.New("user email already exists")
