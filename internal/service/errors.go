package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidState     = errors.New("invalid state")
	ErrValidation       = errors.New("validation failed")
	ErrDeleteForbidden  = errors.New("delete forbidden")
)
