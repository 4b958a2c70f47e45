package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
)

type ErrorKind string

//goland:noinspection ALL
const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTP       ErrorKind = "http"
	KindUnexpected ErrorKind = "unexpected"
)

// Error is returned by every Client call that did not succeed. Body is the
// response body of a non-2xx answer as received, Detail its decoded JSON when
// it parses, else the raw text.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       []byte
	Detail     any
	Message    string

	Err error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		if d := e.DetailText(); d != "" {
			return fmt.Sprintf("%s: %s", e.Message, d)
		}
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DetailText is the response body exactly as the API sent it. Errors built
// without a body fall back to encoding Detail.
func (e *Error) DetailText() string {
	if len(e.Body) > 0 {
		return string(e.Body)
	}
	switch d := e.Detail.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprintf("%v", d)
		}
		return string(b)
	}
}

// Message is the user-facing text for any error a Client call returns.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return fmt.Sprintf("Unexpected error: %v", err)
}

// StatusCode returns the HTTP status of a KindHTTP error, 0 otherwise.
func StatusCode(err error) int {
	var be *Error
	if errors.As(err, &be) && be.Kind == KindHTTP {
		return be.StatusCode
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}

func httpError(status int, body []byte) *Error {
	return &Error{
		Kind:       KindHTTP,
		StatusCode: status,
		Body:       body,
		Detail:     decodeDetail(body),
		Message:    fmt.Sprintf("API Error: %d", status),
	}
}

func unexpected(err error) *Error {
	return &Error{
		Kind:    KindUnexpected,
		Message: fmt.Sprintf("Unexpected error: %v", err),
		Err:     err,
	}
}

func classify(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: "Request timed out", Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &Error{Kind: KindConnection, Message: "Cannot connect to API", Err: err}
	}

	return unexpected(err)
}

func decodeDetail(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}
