package pdsclient

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	authErr := NewAuthError("invalid credentials")
	otherAuthErr := NewAuthError("token expired")

	if !errors.Is(authErr, otherAuthErr) {
		t.Error("expected two Auth errors to match via errors.Is")
	}

	protoErr := NewProtocolError("bad gateway", 502, "", nil)
	if errors.Is(authErr, protoErr) {
		t.Error("expected Auth and Protocol errors not to match")
	}
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewTransportError("dialing pds", cause)

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the wrapped cause")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := NewProtocolError("invalid response", 500, "InternalServerError", nil)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if !strings.Contains(msg, "500") || !strings.Contains(msg, "InternalServerError") {
		t.Errorf("expected message to include status and xrpc code, got %q", msg)
	}
	if !errors.Is(err, NewProtocolError("", 0, "", nil)) {
		t.Error("expected errors.Is to still match on Kind regardless of message")
	}
}

func TestInvalidInputRedactsSensitiveFields(t *testing.T) {
	_, err := ParsePdsUrl("not a url at all")
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pErr.Kind != KindInvalidInput {
		t.Errorf("expected KindInvalidInput, got %s", pErr.Kind)
	}

	sensitive := newInvalidInput("password", "hunter2", "too short")
	if strings.Contains(sensitive.Error(), "hunter2") {
		t.Errorf("expected password value to be redacted, got %q", sensitive.Error())
	}
}
