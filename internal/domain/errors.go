package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrGatewayFailure     = errors.New("gateway failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
)
