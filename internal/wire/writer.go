// Package wire implements the terminal's field-level stream encoding: UTF-8
// tokens terminated by a NUL byte, one token per field. The codec knows
// nothing about messages or versions; it only appends and consumes fields.
package wire

import (
	"bytes"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const fieldTerm byte = 0x00

// Numeric "no value" tokens. The protocol reserves an out-of-range magnitude
// instead of an empty field for unset numerics.
const (
	UnsetIntToken = "2147483647"
	UnsetDecToken = "1.7976931348623157E308"
)

// TimeLayout is the wire representation of timestamps.
const TimeLayout = "20060102-15:04:05"

// DateLayout is the wire representation of calendar dates.
const DateLayout = "20060102"

// Writer accumulates one outbound message as a sequence of NUL-terminated
// fields. Every append returns the writer so serializers chain calls; the
// assembled message is flushed to the transport in a single write.
type Writer struct {
	buf    bytes.Buffer
	fields int
}

// NewWriter returns an empty message writer.
func NewWriter() *Writer {
	return new(Writer)
}

func (w *Writer) field(token string) *Writer {
	w.buf.WriteString(token)
	w.buf.WriteByte(fieldTerm)
	w.fields++
	return w
}

// Str appends one string field. The empty string encodes "no value".
func (w *Writer) Str(s string) *Writer {
	return w.field(s)
}

// Int appends one integer field.
func (w *Writer) Int(v int64) *Writer {
	return w.field(strconv.FormatInt(v, 10))
}

// OptInt appends one integer field, writing the unset sentinel for nil.
func (w *Writer) OptInt(v *int64) *Writer {
	if v == nil {
		return w.field(UnsetIntToken)
	}
	return w.Int(*v)
}

// Dec appends one decimal field.
func (w *Writer) Dec(d decimal.Decimal) *Writer {
	return w.field(d.String())
}

// OptDec appends one decimal field, writing the unset sentinel for nil.
func (w *Writer) OptDec(d *decimal.Decimal) *Writer {
	if d == nil {
		return w.field(UnsetDecToken)
	}
	return w.Dec(*d)
}

// Bool appends one boolean field encoded as "1" or "0".
func (w *Writer) Bool(b bool) *Writer {
	if b {
		return w.field("1")
	}
	return w.field("0")
}

// Date appends one timestamp field.
func (w *Writer) Date(t time.Time) *Writer {
	return w.field(t.Format(TimeLayout))
}

// OptDate appends one timestamp field, writing an empty field for the zero time.
func (w *Writer) OptDate(t time.Time) *Writer {
	if t.IsZero() {
		return w.field("")
	}
	return w.Date(t)
}

// Fields reports how many fields have been appended.
func (w *Writer) Fields() int {
	return w.fields
}

// Bytes returns the encoded message.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
