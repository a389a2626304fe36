// Package observability defines the structured logging surface of the
// adapter. Call sites report session lifecycle, protocol negotiation and
// dropped enrichments through the field constructors here; message payloads
// and account data never reach the log.
package observability

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Str builds a string field.
func Str(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int builds an integer field; protocol versions and request ids log
// through this.
func Int(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Cause builds the conventional field for a teardown or failure reason.
func Cause(err error) Field {
	return Field{Key: "cause", Value: err.Error()}
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the adapter.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
