package store

import "errors"

var (
	ErrPagerExhausted = errors.New("pager exhausted")
	ErrNoSchema       = errors.New("schema is required")
)
