package rom

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no record hash exists for the primary key.
var ErrNotFound = errors.New("record not found")

// DataError reports stored data that a codec could not decode.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// ModelError reports an invalid model definition. It is detected on the first
// use of the model.
type ModelError struct {
	Namespace string
	Field     string
	Msg       string
}

func modelErrf(ns, field string, format string, args ...any) error {
	return &ModelError{ns, field, fmt.Sprintf(format, args...)}
}

func (e *ModelError) Error() string {
	var buf strings.Builder
	buf.WriteString("model ")
	if e.Namespace == "" {
		buf.WriteString("<unnamed>")
	} else {
		buf.WriteString(e.Namespace)
	}
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	return buf.String()
}

// InputError reports a caller-supplied value or filter the model cannot accept.
type InputError struct {
	Namespace string
	Field     string
	Value     any
	Msg       string
	Err       error
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func (e *InputError) Error() string {
	var buf strings.Builder
	if e.Namespace != "" {
		buf.WriteString(e.Namespace)
		if e.Field != "" {
			buf.WriteByte('.')
		}
	}
	buf.WriteString(e.Field)
	if buf.Len() > 0 {
		buf.WriteString(": ")
	}
	buf.WriteString(e.Msg)
	if e.Value != nil {
		fmt.Fprintf(&buf, " (%T %v)", e.Value, e.Value)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// RecordError wraps a failure that concerns one stored record.
type RecordError struct {
	Namespace string
	PK        int64
	Field     string
	Err       error
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s/%d.%s: %v", e.Namespace, e.PK, e.Field, e.Err)
	}
	return fmt.Sprintf("%s/%d: %v", e.Namespace, e.PK, e.Err)
}
