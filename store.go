package rom

import (
	"context"
	"fmt"
	"strings"
)

// Store is the key-value backend rom keeps records and indexes in. Its
// operations follow Redis semantics: a missing key reads as an empty hash or
// set, set operations over missing keys treat them as empty.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a string value; ok is false if the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Incr atomically increments an integer value (missing reads as 0) and
	// returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HGetAllBatch reads many hashes in one round trip.
	HGetAllBatch(ctx context.Context, keys []string) ([]map[string]string, error)

	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)

	// SInterStore stores the intersection of keys under dest (deleting dest
	// if it is empty) and returns its size.
	SInterStore(ctx context.Context, dest string, keys ...string) (int64, error)

	// SDiff returns members of the first set that are in none of the others.
	SDiff(ctx context.Context, keys ...string) ([]string, error)

	// Scan returns every key starting with prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Exec runs cmds in order as one pipelined batch. The batch need not be
	// isolated from other clients.
	Exec(ctx context.Context, cmds []Cmd) error

	// Replace deletes every key starting with prefix and then runs cmds, as a
	// single step no other client can observe halfway.
	Replace(ctx context.Context, prefix string, cmds []Cmd) error
}

// Op is a write command kind.
type Op byte

const (
	OpHSet Op = 'h'
	OpHDel Op = 'H'
	OpDel  Op = 'd'
	OpSAdd Op = 's'
	OpSRem Op = 'S'
	OpSet  Op = 'v'
)

func (op Op) String() string {
	switch op {
	case OpHSet:
		return "HSET"
	case OpHDel:
		return "HDEL"
	case OpDel:
		return "DEL"
	case OpSAdd:
		return "SADD"
	case OpSRem:
		return "SREM"
	case OpSet:
		return "SET"
	default:
		return fmt.Sprintf("Op(%d)", byte(op))
	}
}

// Cmd is one write command. Arg is the hash field (HSET, HDEL), set member
// (SADD, SREM) or value (SET); Value is the HSET value.
type Cmd struct {
	Op    Op
	Key   string
	Arg   string
	Value string
}

func HSet(key, field, value string) Cmd { return Cmd{OpHSet, key, field, value} }
func HDel(key, field string) Cmd        { return Cmd{OpHDel, key, field, ""} }
func Del(key string) Cmd                { return Cmd{Op: OpDel, Key: key} }
func SAdd(key, member string) Cmd       { return Cmd{OpSAdd, key, member, ""} }
func SRem(key, member string) Cmd       { return Cmd{OpSRem, key, member, ""} }
func Set(key, value string) Cmd         { return Cmd{OpSet, key, value, ""} }

// IsIndexMutation reports whether the command touches an index set.
func (c Cmd) IsIndexMutation() bool {
	return (c.Op == OpSAdd || c.Op == OpSRem) && strings.Contains(c.Key, ":idx:")
}

func (c Cmd) String() string {
	switch c.Op {
	case OpHSet:
		return fmt.Sprintf("%v %s %s %q", c.Op, c.Key, c.Arg, c.Value)
	case OpDel:
		return fmt.Sprintf("%v %s", c.Op, c.Key)
	default:
		return fmt.Sprintf("%v %s %q", c.Op, c.Key, c.Arg)
	}
}
