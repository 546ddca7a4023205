package pdsclient

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of error categories the core ever returns.
type Kind string

const (
	// KindTransport covers network, DNS, TLS, timeout, WebSocket, and filesystem I/O failures.
	KindTransport Kind = "transport"
	// KindAuth covers invalid credentials, rejected or expired tokens, and password mismatches.
	KindAuth Kind = "auth"
	// KindProtocol covers non-2xx HTTP responses and malformed server responses.
	KindProtocol Kind = "protocol"
	// KindInvalidInput covers identifier syntax, payload shape, and scheme mismatches.
	KindInvalidInput Kind = "invalid_input"
)

// Error is the single error type returned by every operation in this package.
// It never carries raw credentials, token material, or password hashes; the
// value of any field that could leak a secret is redacted when the error is
// constructed.
type Error struct {
	Kind    Kind
	Message string

	// Context fields, populated when relevant to the Kind.
	URLOrPath string
	HTTPStatus int
	XRPCCode  string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.URLOrPath != "" {
		msg += fmt.Sprintf(" (%s)", e.URLOrPath)
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" [status %d]", e.HTTPStatus)
	}
	if e.XRPCCode != "" {
		msg += fmt.Sprintf(" [code %s]", e.XRPCCode)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is comparisons keyed on Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newInvalidInput(field, value, reason string) *Error {
	return &Error{
		Kind:      KindInvalidInput,
		Message:   fmt.Sprintf("invalid %s: %s", field, reason),
		URLOrPath: redactIfLooksSensitive(field, value),
	}
}

// NewTransportError wraps a transport-layer failure (network, filesystem I/O, websocket).
func NewTransportError(context string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: context, cause: cause}
}

// NewAuthError reports an authentication or authorization failure.
func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// NewProtocolError reports a non-2xx response or malformed server payload.
func NewProtocolError(message string, httpStatus int, xrpcCode string, cause error) *Error {
	return &Error{
		Kind:       KindProtocol,
		Message:    message,
		HTTPStatus: httpStatus,
		XRPCCode:   xrpcCode,
		cause:      cause,
	}
}

// NewInvalidInputError reports a syntactically invalid identifier, payload, or URL.
func NewInvalidInputError(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// redactIfLooksSensitive avoids echoing values for fields that might carry secrets.
func redactIfLooksSensitive(field, value string) string {
	switch field {
	case "credentials", "password", "secret", "token":
		return "***REDACTED***"
	default:
		return value
	}
}
