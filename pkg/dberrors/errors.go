package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("mutcompact: not found")
	ErrClosed          = errors.New("mutcompact: closed")
	ErrInvalidArgument = errors.New("mutcompact: invalid argument")
	ErrUnknownColumn   = errors.New("mutcompact: unknown column")
)
