package wire

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/errs"
)

// Reader consumes NUL-terminated fields from the terminal stream, one field
// per call, with no lookahead and no whole-message buffering.
//
// The reader carries a sticky error: once a read fails every later call is a
// no-op returning zero values, so message parsers chain field reads and check
// Err once at the end. End-of-stream while a field is pending is a transport
// failure, never a parse failure.
type Reader struct {
	br  *bufio.Reader
	err error
}

// NewReader wraps the transport stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r), err: nil}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) field() string {
	if r.err != nil {
		return ""
	}
	tok, err := r.br.ReadString(fieldTerm)
	if err != nil {
		r.fail(errs.Transport(err))
		return ""
	}
	return tok[:len(tok)-1]
}

// Str consumes one string field.
func (r *Reader) Str() string {
	return r.field()
}

// Int consumes one integer field. An empty field decodes as zero.
func (r *Reader) Int() int64 {
	tok := r.field()
	if r.err != nil || tok == "" {
		return 0
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad integer field"), errs.WithCause(err)))
		return 0
	}
	return v
}

// OptInt consumes one integer field, reporting absence for the unset sentinel
// or an empty field.
func (r *Reader) OptInt() (int64, bool) {
	tok := r.field()
	if r.err != nil || tok == "" || tok == UnsetIntToken {
		return 0, false
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad integer field"), errs.WithCause(err)))
		return 0, false
	}
	return v, true
}

// Dec consumes one decimal field. An empty field decodes as zero.
func (r *Reader) Dec() decimal.Decimal {
	tok := r.field()
	if r.err != nil || tok == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad decimal field"), errs.WithCause(err)))
		return decimal.Zero
	}
	return d
}

// OptDec consumes one decimal field, reporting absence for the unset sentinel
// or an empty field.
func (r *Reader) OptDec() (decimal.Decimal, bool) {
	tok := r.field()
	if r.err != nil || tok == "" || tok == UnsetDecToken {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad decimal field"), errs.WithCause(err)))
		return decimal.Zero, false
	}
	return d, true
}

// Bool consumes one boolean field; any non-zero integer is true.
func (r *Reader) Bool() bool {
	return r.Int() != 0
}

// Date consumes one timestamp field.
func (r *Reader) Date() time.Time {
	tok := r.field()
	if r.err != nil || tok == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(TimeLayout, tok, time.UTC)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad date field"), errs.WithCause(err)))
		return time.Time{}
	}
	return t
}

// OptDate consumes one timestamp field, reporting absence for an empty field.
func (r *Reader) OptDate() (time.Time, bool) {
	tok := r.field()
	if r.err != nil || tok == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimeLayout, tok, time.UTC)
	if err != nil {
		r.fail(errs.New(errs.KindParse, errs.WithMessage("bad date field"), errs.WithCause(err)))
		return time.Time{}, false
	}
	return t, true
}
