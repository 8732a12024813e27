package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidData     = errors.New("invalid data type")
	ErrMalformedEntity = errors.New("malformed entity specification")
	ErrUnsupported     = errors.New("unsupported content type")
)
