package rom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// JSONCodec stores any JSON-representable value. In memory the value is kept
// in the shape encoding/json decodes into (with json.Number for numbers), so
// that a stored value loads back equal to what was saved.
func JSONCodec() Codec { return jsonCodec{} }

type jsonCodec struct{}

func (jsonCodec) Kind() Kind { return KindJSON }

func (jsonCodec) FromInput(cfg *Config, v any) (any, error) {
	var raw []byte
	switch v := v.(type) {
	case json.RawMessage:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, &InputError{Value: v, Msg: "not representable as JSON", Err: err}
		}
	}
	out, err := decodeJSON(raw)
	if err != nil {
		return nil, &InputError{Value: v, Msg: "invalid JSON", Err: err}
	}
	return out, nil
}

func (jsonCodec) ToStorage(cfg *Config, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", &InputError{Value: v, Msg: "not representable as JSON", Err: err}
	}
	return string(raw), nil
}

func (jsonCodec) FromStorage(cfg *Config, s string) (any, error) {
	return decodeJSON([]byte(s))
}

func (c jsonCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return out, nil
}

// DecimalCodec stores fixed-point decimals rounded to the given number of
// places. Rounding happens both on input and on load, so index tokens only
// depend on the rounded value.
func DecimalCodec(places int32) Codec { return decimalCodec{places} }

type decimalCodec struct {
	places int32
}

func (decimalCodec) Kind() Kind { return KindDecimal }

func (c decimalCodec) FromInput(cfg *Config, v any) (any, error) {
	var d decimal.Decimal
	switch v := v.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil, badInput(v, "nil decimal")
		}
		d = *v
	case string:
		var err error
		d, err = decimal.NewFromString(v)
		if err != nil {
			return nil, &InputError{Value: v, Msg: "expected a decimal", Err: err}
		}
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case int32:
		d = decimal.NewFromInt32(v)
	default:
		return nil, badInput(v, "expected a decimal")
	}
	return d.Round(c.places), nil
}

func (c decimalCodec) ToStorage(cfg *Config, v any) (string, error) {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return "", badInput(v, "expected decimal.Decimal")
	}
	return d.StringFixed(c.places), nil
}

func (c decimalCodec) FromStorage(cfg *Config, s string) (any, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Round(c.places), nil
}

func (c decimalCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// TimeOffsetMicros is added to Time.UnixMicro() before storing, so that the
// zero time.Time is stored as 0 and all stored times are non-negative.
const TimeOffsetMicros = 62_135_596_800_000_000

// DateTimeCodec stores times with microsecond precision.
func DateTimeCodec() Codec { return dateTimeCodec{} }

type dateTimeCodec struct{}

func (dateTimeCodec) Kind() Kind { return KindDateTime }

func (dateTimeCodec) FromInput(cfg *Config, v any) (any, error) {
	var t time.Time
	switch v := v.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return nil, badInput(v, "nil time")
		}
		t = *v
	case string:
		var err error
		t, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, &InputError{Value: v, Msg: "expected an RFC 3339 time", Err: err}
		}
	case int64:
		t = time.Unix(v, 0)
	default:
		return nil, badInput(v, "expected a time")
	}
	return t.Truncate(time.Microsecond).In(cfg.location()), nil
}

func (dateTimeCodec) ToStorage(cfg *Config, v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", badInput(v, "expected time.Time")
	}
	return strconv.FormatUint(uint64(t.UnixMicro())+TimeOffsetMicros, 10), nil
}

func (dateTimeCodec) FromStorage(cfg *Config, s string) (any, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return time.UnixMicro(int64(u - TimeOffsetMicros)).In(cfg.location()), nil
}

func (c dateTimeCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// ObjectCodec stores arbitrary Go values as MessagePack. If proto is non-nil,
// values must be of proto's type and load back as that type; otherwise they
// load back in msgpack's generic shape.
func ObjectCodec(proto any) Codec {
	return objectCodec{typ: reflect.TypeOf(proto)}
}

type objectCodec struct {
	typ reflect.Type
}

func (objectCodec) Kind() Kind { return KindObject }

func (c objectCodec) FromInput(cfg *Config, v any) (any, error) {
	if c.typ != nil && reflect.TypeOf(v) != c.typ {
		return nil, badInput(v, "expected %v", c.typ)
	}
	return v, nil
}

func (c objectCodec) ToStorage(cfg *Config, v any) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return "", &InputError{Value: v, Msg: "cannot encode using MsgPack", Err: err}
	}
	return buf.String(), nil
}

func (c objectCodec) FromStorage(cfg *Config, s string) (any, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader([]byte(s)))
	if c.typ == nil {
		return dec.DecodeInterface()
	}
	ptr := reflect.New(c.typ)
	if err := dec.DecodeValue(ptr); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func (c objectCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}
