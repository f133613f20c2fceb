package api

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure the way callers need to react to it.
type Kind int

const (
	// KindNetwork covers transport failures: connection refused, DNS,
	// timeouts, unreadable responses.
	KindNetwork Kind = iota
	// KindAuth is a 401: missing, expired or rejected session.
	KindAuth
	// KindValidation is a 400/422: the server rejected the input shape.
	KindValidation
	// KindNotFound is a 404: the task does not exist or is not owned
	// by the caller.
	KindNotFound
	// KindServer is any other non-2xx status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	default:
		return "server"
	}
}

// Error is a failed API call. Status is 0 for transport failures.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsAuth reports whether err is a 401/expired-session failure.
func IsAuth(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAuth
}

// IsNotFound reports whether err is a 404 failure.
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsValidation reports whether the server rejected the input.
func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNetwork
}

// statusKind maps an HTTP status to a failure kind.
func statusKind(status int) Kind {
	switch status {
	case 401:
		return KindAuth
	case 400, 422:
		return KindValidation
	case 404:
		return KindNotFound
	default:
		return KindServer
	}
}
