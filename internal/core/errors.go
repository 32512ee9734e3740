package core

import (
	"errors"
	"fmt"

	"vehicle-remote/internal/protocol"
)

var (
	ErrNotRunning     = errors.New("session not running")
	ErrNotInitialized = errors.New("session not initialized")
)

// InitError means the session could not be brought up. It is fatal for
// the session, which ends up stopped.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("session init failed: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// SendError means a command did not reach the vehicle. The vehicle state
// is left untouched and the operator may retry.
type SendError struct {
	ID   string
	Code protocol.CommandCode
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s failed: %v", e.Code, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
