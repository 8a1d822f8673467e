package gateway

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrMalformed    = errors.New("malformed response")
	ErrUnavailable  = errors.New("backend unavailable")
)
