package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrInvalidInput     = errors.New("invalid input")
)
