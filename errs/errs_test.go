package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorStringIncludesBrokerCodeAndRawText(t *testing.T) {
	err := Broker(42, 202, "Order Canceled - Reason: Order not found")

	msg := err.Error()
	if !strings.Contains(msg, "request_id=42") {
		t.Fatalf("missing request id: %s", msg)
	}
	if !strings.Contains(msg, "code=202") {
		t.Fatalf("missing broker code: %s", msg)
	}
	if !strings.Contains(msg, "Order Canceled") {
		t.Fatalf("raw broker text not preserved: %s", msg)
	}
}

func TestTransportWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport(cause)

	if err.Kind != KindTransport {
		t.Fatalf("kind = %s, want %s", err.Kind, KindTransport)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("nil error string = %q", got)
	}
}

func TestOptionsAssembleEnvelope(t *testing.T) {
	err := New(KindVersion,
		WithMessage("server version 30 below floor 38"),
		WithCause(errors.New("handshake")),
	)
	if err.Kind != KindVersion {
		t.Fatalf("kind = %s", err.Kind)
	}
	if !strings.Contains(err.Error(), "below floor") {
		t.Fatalf("message lost: %s", err.Error())
	}
}
