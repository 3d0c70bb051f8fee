package rom

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true), zstd.WithEncoderCRC(false))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdEnc, zstdDec, zstdErr
}

// CompressedCodec stores a byte slice compressed with zstd. The index token is
// the uncompressed content.
func CompressedCodec() Codec { return compressedCodec{} }

type compressedCodec struct{}

func (compressedCodec) Kind() Kind { return KindCompressed }

func (compressedCodec) FromInput(cfg *Config, v any) (any, error) {
	return bytesFromInput(v)
}

func (compressedCodec) ToStorage(cfg *Config, v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", badInput(v, "expected []byte")
	}
	enc, _, err := zstdCodecs()
	if err != nil {
		return "", err
	}
	return string(enc.EncodeAll(b, nil)), nil
}

func (compressedCodec) FromStorage(cfg *Config, s string) (any, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll([]byte(s), []byte{})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (compressedCodec) ToIndex(cfg *Config, v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", badInput(v, "expected []byte")
	}
	return string(b), nil
}

// Base64Codec stores a byte slice in standard base64.
func Base64Codec() Codec { return base64Codec{} }

type base64Codec struct{}

func (base64Codec) Kind() Kind { return KindBase64 }

func (base64Codec) FromInput(cfg *Config, v any) (any, error) {
	return bytesFromInput(v)
}

func (base64Codec) ToStorage(cfg *Config, v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", badInput(v, "expected []byte")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (base64Codec) FromStorage(cfg *Config, s string) (any, error) {
	return base64.StdEncoding.DecodeString(s)
}

func (c base64Codec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}

// ChainCodec applies stages in order when storing, each stage consuming the
// stored string of the previous one, and in reverse order when loading. For
// example, ChainCodec(JSONCodec(), CompressedCodec(), Base64Codec()) keeps a
// JSON value in memory and stores it compressed and base64-encoded.
//
// The index token is the last stage's token of the penultimate stage's output.
func ChainCodec(stages ...Codec) Codec {
	if len(stages) == 0 {
		panic("rom: ChainCodec needs at least one stage")
	}
	return chainCodec{append([]Codec(nil), stages...)}
}

type chainCodec struct {
	stages []Codec
}

func (chainCodec) Kind() Kind { return KindChain }

func (c chainCodec) FromInput(cfg *Config, v any) (any, error) {
	if IsNull(v) {
		return Null, nil
	}
	return c.stages[0].FromInput(cfg, v)
}

// through runs v through the first n stages' storage encoding, and returns
// the input of stage n.
func (c chainCodec) through(cfg *Config, v any, n int) (any, error) {
	for i := 0; i < n; i++ {
		if IsNull(v) {
			return Null, nil
		}
		s, err := c.stages[i].ToStorage(cfg, v)
		if err != nil {
			return nil, err
		}
		v, err = c.stages[i+1].FromInput(cfg, s)
		if err != nil {
			return nil, fmt.Errorf("chain stage %d: %w", i+1, err)
		}
	}
	return v, nil
}

func (c chainCodec) ToStorage(cfg *Config, v any) (string, error) {
	last := len(c.stages) - 1
	v, err := c.through(cfg, v, last)
	if err != nil {
		return "", err
	}
	if IsNull(v) {
		return "", badInput(v, "null inside chain")
	}
	return c.stages[last].ToStorage(cfg, v)
}

func (c chainCodec) FromStorage(cfg *Config, s string) (any, error) {
	for i := len(c.stages) - 1; i > 0; i-- {
		v, err := c.stages[i].FromStorage(cfg, s)
		if err != nil {
			return nil, fmt.Errorf("chain stage %d: %w", i, err)
		}
		switch v := v.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return nil, fmt.Errorf("chain stage %d loads %T, cannot feed stage %d", i, v, i-1)
		}
	}
	return c.stages[0].FromStorage(cfg, s)
}

func (c chainCodec) ToIndex(cfg *Config, v any) (string, error) {
	last := len(c.stages) - 1
	v, err := c.through(cfg, v, last)
	if err != nil {
		return "", err
	}
	if IsNull(v) {
		return "", badInput(v, "null inside chain")
	}
	return c.stages[last].ToIndex(cfg, v)
}

// Ref points at a record of another model. Resolving it is an explicit
// DB.Resolve call.
type Ref struct {
	Namespace string
	ID        int64

	// rec is the referenced in-memory record when the ref was built from one;
	// cascading saves use it to persist unsaved targets.
	rec *Record
}

// RefTo returns a reference to a saved or unsaved record.
func RefTo(rec *Record) Ref {
	return Ref{Namespace: rec.model.namespace, ID: rec.pk, rec: rec}
}

// Record returns the in-memory record the reference was built from, if any.
func (r Ref) Record() *Record {
	return r.rec
}

func (r Ref) String() string {
	return r.Namespace + "/" + strconv.FormatInt(r.ID, 10)
}

// ReferenceCodec stores the primary key of a record in namespace ns.
func ReferenceCodec(ns string) Codec { return referenceCodec{ns} }

type referenceCodec struct {
	namespace string
}

func (referenceCodec) Kind() Kind { return KindReference }

func (c referenceCodec) FromInput(cfg *Config, v any) (any, error) {
	var ref Ref
	switch v := v.(type) {
	case Ref:
		ref = v
	case *Record:
		if v == nil {
			return nil, badInput(v, "nil record")
		}
		ref = RefTo(v)
	case int64:
		ref = Ref{Namespace: c.namespace, ID: v}
	case int:
		ref = Ref{Namespace: c.namespace, ID: int64(v)}
	default:
		return nil, badInput(v, "expected a reference to %s", c.namespace)
	}
	if ref.Namespace != c.namespace {
		return nil, badInput(v, "expected a reference to %s", c.namespace)
	}
	if ref.rec == nil && ref.ID <= 0 {
		return nil, badInput(v, "invalid primary key")
	}
	return ref, nil
}

func (c referenceCodec) ToStorage(cfg *Config, v any) (string, error) {
	ref, ok := v.(Ref)
	if !ok {
		return "", badInput(v, "expected Ref")
	}
	id := ref.ID
	if id == 0 && ref.rec != nil {
		id = ref.rec.pk
	}
	if id <= 0 {
		return "", badInput(v, "reference to an unsaved record")
	}
	return strconv.FormatInt(id, 10), nil
}

func (c referenceCodec) FromStorage(cfg *Config, s string) (any, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return Ref{Namespace: c.namespace, ID: id}, nil
}

func (c referenceCodec) ToIndex(cfg *Config, v any) (string, error) {
	return c.ToStorage(cfg, v)
}
