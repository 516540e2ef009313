package client

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrAlreadyExists         = errors.New("already exists")
	ErrNotFound              = errors.New("not found")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// ServerError is a call the server rejected for a reason other than
// availability or authentication.
type ServerError struct {
	Code    codes.Code
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rpc error: %s: %s", e.Code, e.Message)
}
