// Package lobbyerr defines the error taxonomy shared by the directory, relay and coordinator.
package lobbyerr

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindUnknown         Kind = "UNKNOWN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindFull            Kind = "FULL"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindValidation      Kind = "VALIDATION"
	KindNetwork         Kind = "NETWORK"
	KindRelayAllocation Kind = "RELAY_ALLOCATION"
	KindForbidden       Kind = "FORBIDDEN"
	KindBusy            Kind = "BUSY"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
)

// Error carries a Kind alongside the failed operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, lobbyerr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrFull            = &Error{Kind: KindFull}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrRelayAllocation = &Error{Kind: KindRelayAllocation}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrBusy            = &Error{Kind: KindBusy}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
)

func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindFull, KindBusy:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindRelayAllocation:
		return http.StatusServiceUnavailable
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse used when the response body carries no kind.
func FromHTTPStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusServiceUnavailable:
		return KindRelayAllocation
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// FromResponse turns a non-2xx response into an *Error. The body is expected
// to be {"kind": ..., "message": ...}; the status code is the fallback.
func FromResponse(op string, resp *http.Response) error {
	var body struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	kind := Kind(body.Kind)
	if kind == "" {
		kind = FromHTTPStatus(resp.StatusCode)
	}
	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}
	return New(kind, op, msg)
}
