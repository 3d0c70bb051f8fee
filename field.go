package rom

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const (
	nullToken   = "~"
	valueMarker = "="
)

// Field describes one field of a model: its name, codec, default and indexing
// flags. A Field carries no value; records map fields to values.
//
// The builder methods modify the receiver and return it. NewModel copies the
// fields it is given, so a Field may be reused across models.
type Field struct {
	name      string
	codec     Codec
	def       any
	indexed   bool
	hashIndex bool
}

// NewField defines a field with a custom codec. The default is Null.
func NewField(name string, codec Codec) *Field {
	return &Field{
		name:  name,
		codec: codec,
		def:   Null,
	}
}

func String(name string) *Field                { return NewField(name, StringCodec()) }
func Integer(name string) *Field               { return NewField(name, IntegerCodec()) }
func Boolean(name string) *Field               { return NewField(name, BooleanCodec()) }
func Bytes(name string) *Field                 { return NewField(name, BytesCodec()) }
func JSON(name string) *Field                  { return NewField(name, JSONCodec()) }
func Decimal(name string, places int32) *Field { return NewField(name, DecimalCodec(places)) }
func DateTime(name string) *Field              { return NewField(name, DateTimeCodec()) }
func Compressed(name string) *Field            { return NewField(name, CompressedCodec()) }
func Base64(name string) *Field                { return NewField(name, Base64Codec()) }
func Object(name string, proto any) *Field     { return NewField(name, ObjectCodec(proto)) }
func Reference(name, ns string) *Field         { return NewField(name, ReferenceCodec(ns)) }

func Chain(name string, stages ...Codec) *Field {
	return NewField(name, ChainCodec(stages...))
}

// Indexed makes the field usable in query filters.
func (f *Field) Indexed() *Field {
	f.indexed = true
	return f
}

// HashIndexed indexes the field by a SHA-256 digest of its token instead of
// the token itself, for long values. Implies Indexed.
func (f *Field) HashIndexed() *Field {
	f.indexed = true
	f.hashIndex = true
	return f
}

// Default sets the value new records start with.
func (f *Field) Default(v any) *Field {
	f.def = v
	return f
}

func (f *Field) Name() string        { return f.name }
func (f *Field) Codec() Codec        { return f.codec }
func (f *Field) Kind() Kind          { return f.codec.Kind() }
func (f *Field) IsIndexed() bool     { return f.indexed }
func (f *Field) IsHashIndexed() bool { return f.hashIndex }
func (f *Field) DefaultValue() any   { return f.def }

func (f *Field) clone() *Field {
	c := *f
	return &c
}

// FromInput normalizes a caller-supplied value. nil and Null yield Null.
func (f *Field) FromInput(cfg *Config, v any) (any, error) {
	if v == nil || IsNull(v) {
		return Null, nil
	}
	out, err := f.codec.FromInput(cfg, v)
	if err != nil {
		return nil, f.inputErr(v, err)
	}
	return out, nil
}

// Encode returns the stored form of v. present is false for Null, which is
// stored by leaving the field out of the record hash.
func (f *Field) Encode(cfg *Config, v any) (data string, present bool, err error) {
	if IsNull(v) {
		return "", false, nil
	}
	data, err = f.codec.ToStorage(cfg, v)
	if err != nil {
		return "", false, f.inputErr(v, err)
	}
	return data, true, nil
}

// Decode is the inverse of Encode.
func (f *Field) Decode(cfg *Config, data string, present bool) (any, error) {
	if !present {
		return Null, nil
	}
	v, err := f.codec.FromStorage(cfg, data)
	if err != nil {
		return nil, dataErrf([]byte(data), 0, err, "%s: cannot decode %s", f.name, f.codec.Kind())
	}
	return v, nil
}

// Token returns the index set member for v: "~" for Null, otherwise "=" and
// the codec's token, or its hex SHA-256 digest for hash-indexed fields.
func (f *Field) Token(cfg *Config, v any) (string, error) {
	if IsNull(v) {
		return nullToken, nil
	}
	tok, err := f.codec.ToIndex(cfg, v)
	if err != nil {
		return "", f.inputErr(v, err)
	}
	if f.hashIndex {
		sum := sha256.Sum256([]byte(tok))
		tok = hex.EncodeToString(sum[:])
	}
	return valueMarker + tok, nil
}

func (f *Field) inputErr(v any, err error) error {
	var ie *InputError
	if errors.As(err, &ie) && ie.Field == "" {
		e := *ie
		e.Field = f.name
		return &e
	}
	return &InputError{Field: f.name, Value: v, Msg: "invalid value", Err: err}
}
