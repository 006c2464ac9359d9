package flow

import (
	"errors"
	"fmt"
	"time"
)

// ErrTokenNotFound means the login flow completed but neither the network
// observer nor the storage scan produced a token.
var ErrTokenNotFound = errors.New("token not found after login, please verify credentials")

// ElementTimeoutError means a required form element never appeared within
// its bound.
type ElementTimeoutError struct {
	Field   string
	Timeout time.Duration
}

func (e *ElementTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the %s element", e.Timeout, e.Field)
}

// NavigationTimeoutError means a required navigation never completed within
// its bound. Optional navigation waits never produce this.
type NavigationTimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s navigation", e.Timeout, e.Stage)
}
