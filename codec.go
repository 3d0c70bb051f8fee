package rom

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// Kind names the semantic type of a codec.
type Kind string

const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindBoolean    Kind = "boolean"
	KindBytes      Kind = "bytes"
	KindJSON       Kind = "json"
	KindDecimal    Kind = "decimal"
	KindDateTime   Kind = "datetime"
	KindCompressed Kind = "compressed"
	KindBase64     Kind = "base64"
	KindObject     Kind = "object"
	KindChain      Kind = "chain"
	KindReference  Kind = "reference"
)

// Codec converts a field's values between the caller's input, the in-memory
// representation, the string persisted in the record hash, and the index token.
//
// Codecs never see Null except through FromInput of a chain stage; Field
// handles Null before delegating. ToStorage and FromStorage must be inverse
// of each other, and ToIndex must return equal tokens for equal values.
type Codec interface {
	Kind() Kind
	FromInput(cfg *Config, v any) (any, error)
	ToStorage(cfg *Config, v any) (string, error)
	FromStorage(cfg *Config, s string) (any, error)
	ToIndex(cfg *Config, v any) (string, error)
}

func badInput(v any, format string, args ...any) error {
	return &InputError{Value: v, Msg: fmt.Sprintf(format, args...)}
}

// StringCodec stores strings verbatim.
func StringCodec() Codec { return stringCodec{} }

type stringCodec struct{}

func (stringCodec) Kind() Kind { return KindString }

func (stringCodec) FromInput(cfg *Config, v any) (any, error) {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	default:
		return nil, badInput(v, "expected a string")
	}
	if cfg != nil && cfg.StrictUTF8 && !utf8.ValidString(s) {
		return nil, badInput(v, "invalid UTF-8")
	}
	return s, nil
}

func (stringCodec) ToStorage(cfg *Config, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", badInput(v, "expected a string")
	}
	return s, nil
}

func (stringCodec) FromStorage(cfg *Config, s string) (any, error) {
	return s, nil
}

func (c stringCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// IntegerCodec stores int64 values in decimal.
func IntegerCodec() Codec { return integerCodec{} }

type integerCodec struct{}

func (integerCodec) Kind() Kind { return KindInteger }

func (integerCodec) FromInput(cfg *Config, v any) (any, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &InputError{Value: v, Msg: "expected an integer", Err: err}
		}
		return n, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, badInput(v, "integer overflows int64")
		}
		return int64(u), nil
	default:
		return nil, badInput(v, "expected an integer")
	}
}

func (integerCodec) ToStorage(cfg *Config, v any) (string, error) {
	n, ok := v.(int64)
	if !ok {
		return "", badInput(v, "expected int64")
	}
	return strconv.FormatInt(n, 10), nil
}

func (integerCodec) FromStorage(cfg *Config, s string) (any, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (c integerCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// BooleanCodec stores booleans as "1" and "0".
func BooleanCodec() Codec { return booleanCodec{} }

type booleanCodec struct{}

func (booleanCodec) Kind() Kind { return KindBoolean }

func (booleanCodec) FromInput(cfg *Config, v any) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &InputError{Value: v, Msg: "expected a boolean", Err: err}
		}
		return b, nil
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return nil, badInput(v, "expected a boolean")
}

func (booleanCodec) ToStorage(cfg *Config, v any) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", badInput(v, "expected a bool")
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

func (booleanCodec) FromStorage(cfg *Config, s string) (any, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
}

func (c booleanCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// BytesCodec stores a byte slice verbatim.
func BytesCodec() Codec { return bytesCodec{} }

type bytesCodec struct{}

func (bytesCodec) Kind() Kind { return KindBytes }

func (bytesCodec) FromInput(cfg *Config, v any) (any, error) {
	return bytesFromInput(v)
}

func (bytesCodec) ToStorage(cfg *Config, v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", badInput(v, "expected []byte")
	}
	return string(b), nil
}

func (bytesCodec) FromStorage(cfg *Config, s string) (any, error) {
	return []byte(s), nil
}

func (c bytesCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

func bytesFromInput(v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return append([]byte{}, v...), nil
	case string:
		return []byte(v), nil
	default:
		return nil, badInput(v, "expected []byte or string")
	}
}
