package rom

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

var errWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

type memKind byte

const (
	memString memKind = iota + 1
	memHash
	memSet
)

type memEntry struct {
	kind memKind
	str  string
	hash map[string]string
	set  map[string]struct{}
}

func (e *memEntry) clone() *memEntry {
	c := &memEntry{kind: e.kind, str: e.str}
	if e.hash != nil {
		c.hash = maps.Clone(e.hash)
	}
	if e.set != nil {
		c.set = maps.Clone(e.set)
	}
	return c
}

// MemStore is a transient in-memory Store, intended for tests and for
// embedding where persistence is not needed.
type MemStore struct {
	mu   sync.Mutex
	data map[string]*memEntry

	// FailAfter, when positive, makes the Nth write command from now fail,
	// leaving a batch partially applied. Replace rolls back instead. Tests use
	// it to check failure handling.
	FailAfter int
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]*memEntry)}
}

func (s *MemStore) entry(key string, kind memKind) (*memEntry, error) {
	e := s.data[key]
	if e == nil {
		return nil, nil
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%s: %w", key, errWrongType)
	}
	return e, nil
}

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(key, memString)
	if e == nil || err != nil {
		return "", false, err
	}
	return e.str, true, nil
}

func (s *MemStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(key, memString)
	if err != nil {
		return 0, err
	}
	var n int64
	if e != nil {
		n, err = strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: value is not an integer", key)
		}
	} else {
		e = &memEntry{kind: memString}
		s.data[key] = e
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hgetall(key)
}

func (s *MemStore) hgetall(key string) (map[string]string, error) {
	e, err := s.entry(key, memHash)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return map[string]string{}, nil
	}
	return maps.Clone(e.hash), nil
}

func (s *MemStore) HGetAllBatch(ctx context.Context, keys []string) ([]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		h, err := s.hgetall(key)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func (s *MemStore) set(key string) (map[string]struct{}, error) {
	e, err := s.entry(key, memSet)
	if e == nil || err != nil {
		return nil, err
	}
	return e.set, nil
}

func (s *MemStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.set(key)
	if err != nil {
		return nil, err
	}
	return slices.Collect(maps.Keys(m)), nil
}

func (s *MemStore) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.set(key)
	return int64(len(m)), err
}

func (s *MemStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.set(key)
	if err != nil {
		return false, err
	}
	_, ok := m[member]
	return ok, nil
}

func (s *MemStore) inter(keys []string) (map[string]struct{}, error) {
	var out map[string]struct{}
	for i, key := range keys {
		m, err := s.set(key)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = maps.Clone(m)
			continue
		}
		for k := range out {
			if _, ok := m[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out, nil
}

func (s *MemStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.inter(keys)
	if err != nil {
		return nil, err
	}
	return slices.Collect(maps.Keys(m)), nil
}

func (s *MemStore) SInterStore(ctx context.Context, dest string, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.inter(keys)
	if err != nil {
		return 0, err
	}
	if len(m) == 0 {
		delete(s.data, dest)
	} else {
		s.data[dest] = &memEntry{kind: memSet, set: m}
	}
	return int64(len(m)), nil
}

func (s *MemStore) SDiff(ctx context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		return nil, nil
	}
	base, err := s.set(keys[0])
	if err != nil {
		return nil, err
	}
	out := maps.Clone(base)
	for _, key := range keys[1:] {
		m, err := s.set(key)
		if err != nil {
			return nil, err
		}
		for k := range m {
			delete(out, k)
		}
	}
	return slices.Collect(maps.Keys(out)), nil
}

func (s *MemStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *MemStore) Exec(ctx context.Context, cmds []Cmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cmds {
		if err := s.apply(s.data, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Replace(ctx context.Context, prefix string, cmds []Cmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Work on a snapshot so that a failure leaves the store untouched.
	snap := make(map[string]*memEntry, len(s.data))
	for k, e := range s.data {
		if !strings.HasPrefix(k, prefix) {
			snap[k] = e.clone()
		}
	}
	for _, c := range cmds {
		if err := s.apply(snap, c); err != nil {
			return err
		}
	}
	s.data = snap
	return nil
}

func (s *MemStore) apply(data map[string]*memEntry, c Cmd) error {
	if s.FailAfter > 0 {
		s.FailAfter--
		if s.FailAfter == 0 {
			return fmt.Errorf("memstore: injected failure at %v", c)
		}
	}
	e := data[c.Key]
	want := map[Op]memKind{OpHSet: memHash, OpHDel: memHash, OpSAdd: memSet, OpSRem: memSet, OpSet: memString}[c.Op]
	if e != nil && c.Op != OpDel && c.Op != OpSet && e.kind != want {
		return fmt.Errorf("%s: %w", c.Key, errWrongType)
	}
	switch c.Op {
	case OpHSet:
		if e == nil {
			e = &memEntry{kind: memHash, hash: make(map[string]string)}
			data[c.Key] = e
		}
		e.hash[c.Arg] = c.Value
	case OpHDel:
		if e != nil {
			delete(e.hash, c.Arg)
			if len(e.hash) == 0 {
				delete(data, c.Key)
			}
		}
	case OpSAdd:
		if e == nil {
			e = &memEntry{kind: memSet, set: make(map[string]struct{})}
			data[c.Key] = e
		}
		e.set[c.Arg] = struct{}{}
	case OpSRem:
		if e != nil {
			delete(e.set, c.Arg)
			if len(e.set) == 0 {
				delete(data, c.Key)
			}
		}
	case OpSet:
		data[c.Key] = &memEntry{kind: memString, str: c.Arg}
	case OpDel:
		delete(data, c.Key)
	default:
		return fmt.Errorf("memstore: unsupported command %v", c.Op)
	}
	return nil
}

// Len returns the number of keys in the store.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
