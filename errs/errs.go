// Package errs provides structured error types shared across the ibgate adapter.
package errs

import (
	"strconv"
	"strings"
)

// Kind identifies an adapter error category.
type Kind string

const (
	// KindTransport indicates the byte stream to the terminal failed mid-message.
	KindTransport Kind = "transport"
	// KindVersion indicates the negotiated protocol version is unusable.
	KindVersion Kind = "version"
	// KindBroker indicates an error reported by the broker terminal itself.
	KindBroker Kind = "broker"
	// KindParse indicates an inbound wire message could not be decoded.
	KindParse Kind = "parse"
	// KindInvalid indicates invalid input provided by the caller.
	KindInvalid Kind = "invalid_request"
)

// E captures structured error information produced across the adapter.
//
// Broker-originated errors keep the terminal's own numeric code and text
// verbatim; downstream tooling keys off those values and must never see a
// translated summary instead.
type E struct {
	Kind      Kind
	RequestID int64
	Code      int64
	RawMsg    string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given category.
func New(kind Kind, opts ...Option) *E {
	e := &E{
		Kind:      kind,
		RequestID: 0,
		Code:      0,
		RawMsg:    "",
		Message:   "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRequestID records the transaction id the error refers to.
func WithRequestID(id int64) Option {
	return func(e *E) {
		e.RequestID = id
	}
}

// WithBrokerCode captures the terminal's numeric error code.
func WithBrokerCode(code int64) Option {
	return func(e *E) {
		e.Code = code
	}
}

// WithRawMessage captures the terminal's error text exactly as received.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = "unknown"
	}
	parts = append(parts, "kind="+kind)

	if e.RequestID != 0 {
		parts = append(parts, "request_id="+strconv.FormatInt(e.RequestID, 10))
	}
	if e.Code != 0 {
		parts = append(parts, "code="+strconv.FormatInt(e.Code, 10))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Transport wraps a stream failure as a session-fatal transport error.
func Transport(cause error) *E {
	return New(KindTransport, WithMessage("terminal stream failed"), WithCause(cause))
}

// Broker builds the typed error value for a terminal-reported failure.
func Broker(requestID, code int64, text string) *E {
	return New(KindBroker, WithRequestID(requestID), WithBrokerCode(code), WithRawMessage(text))
}
