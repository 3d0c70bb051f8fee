// Package romtest checks that a rom.Store implementation behaves the way rom
// expects, and provides a Store wrapper that records issued writes.
package romtest

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/andreyvit/rom"
)

// RunStoreTests exercises a Store. newStore must return an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) rom.Store) {
	ctx := context.Background()

	t.Run("strings", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(ctx, "a")
		ensure(t, err)
		if ok {
			t.Fatalf("Get(missing) ok = true")
		}
		for i := int64(1); i <= 3; i++ {
			if n := must[int64](t)(s.Incr(ctx, "a")); n != i {
				t.Errorf("Incr #%d = %d", i, n)
			}
		}
		v, ok, err := s.Get(ctx, "a")
		ensure(t, err)
		if !ok || v != "3" {
			t.Errorf("Get = %q, %v, wanted \"3\", true", v, ok)
		}
		ensure(t, s.Exec(ctx, []rom.Cmd{rom.Set("a", "10")}))
		if n := must[int64](t)(s.Incr(ctx, "a")); n != 11 {
			t.Errorf("Incr after Set = %d, wanted 11", n)
		}
	})

	t.Run("hashes", func(t *testing.T) {
		s := newStore(t)
		ensure(t, s.Exec(ctx, []rom.Cmd{
			rom.HSet("h1", "a", "1"),
			rom.HSet("h1", "b", "2"),
			rom.HSet("h2", "x", ""),
			rom.HDel("h1", "b"),
		}))
		DeepEqual(t, must[map[string]string](t)(s.HGetAll(ctx, "h1")), map[string]string{"a": "1"})
		DeepEqual(t, must[map[string]string](t)(s.HGetAll(ctx, "missing")), map[string]string{})
		hs := must[[]map[string]string](t)(s.HGetAllBatch(ctx, []string{"h2", "missing", "h1"}))
		DeepEqual(t, hs, []map[string]string{{"x": ""}, {}, {"a": "1"}})

		ensure(t, s.Exec(ctx, []rom.Cmd{rom.Del("h1"), rom.HDel("h2", "x")}))
		DeepEqual(t, must[[]string](t)(s.Scan(ctx, "h")), []string(nil))
	})

	t.Run("sets", func(t *testing.T) {
		s := newStore(t)
		ensure(t, s.Exec(ctx, []rom.Cmd{
			rom.SAdd("s1", "1"), rom.SAdd("s1", "2"), rom.SAdd("s1", "3"),
			rom.SAdd("s2", "2"), rom.SAdd("s2", "3"), rom.SAdd("s2", "4"),
			rom.SAdd("s3", "3"),
			rom.SAdd("s1", "1"),
		}))
		DeepEqual(t, Sorted(must[[]string](t)(s.SMembers(ctx, "s1"))), []string{"1", "2", "3"})
		if n := must[int64](t)(s.SCard(ctx, "s1")); n != 3 {
			t.Errorf("SCard = %d, wanted 3", n)
		}
		if n := must[int64](t)(s.SCard(ctx, "missing")); n != 0 {
			t.Errorf("SCard(missing) = %d, wanted 0", n)
		}
		if !must[bool](t)(s.SIsMember(ctx, "s1", "2")) || must[bool](t)(s.SIsMember(ctx, "s1", "4")) {
			t.Errorf("SIsMember wrong")
		}
		DeepEqual(t, Sorted(must[[]string](t)(s.SInter(ctx, "s1", "s2"))), []string{"2", "3"})
		DeepEqual(t, Sorted(must[[]string](t)(s.SInter(ctx, "s1", "missing"))), []string(nil))
		DeepEqual(t, Sorted(must[[]string](t)(s.SDiff(ctx, "s1", "s3"))), []string{"1", "2"})
		DeepEqual(t, Sorted(must[[]string](t)(s.SDiff(ctx, "s1", "s2", "s3"))), []string{"1"})
		DeepEqual(t, Sorted(must[[]string](t)(s.SDiff(ctx, "missing", "s1"))), []string(nil))

		if n := must[int64](t)(s.SInterStore(ctx, "t", "s1", "s2")); n != 2 {
			t.Errorf("SInterStore = %d, wanted 2", n)
		}
		DeepEqual(t, Sorted(must[[]string](t)(s.SMembers(ctx, "t"))), []string{"2", "3"})
		if n := must[int64](t)(s.SInterStore(ctx, "t", "s1", "missing")); n != 0 {
			t.Errorf("SInterStore(empty) = %d, wanted 0", n)
		}
		DeepEqual(t, must[[]string](t)(s.Scan(ctx, "t")), []string(nil))

		ensure(t, s.Exec(ctx, []rom.Cmd{rom.SRem("s3", "3"), rom.SRem("s3", "nope")}))
		DeepEqual(t, must[[]string](t)(s.Scan(ctx, "s")), []string{"s1", "s2"})
	})

	t.Run("replace", func(t *testing.T) {
		s := newStore(t)
		ensure(t, s.Exec(ctx, []rom.Cmd{
			rom.Set("p|a:next", "7"),
			rom.HSet("p|a:data:1", "x", "1"),
			rom.SAdd("p|a:keys", "1"),
			rom.SAdd("p|ab:keys", "1"),
			rom.Set("q", "1"),
		}))
		ensure(t, s.Replace(ctx, "p|a:", []rom.Cmd{
			rom.HSet("p|a:data:1", "y", "2"),
			rom.SAdd("p|a:keys", "1"),
			rom.Set("p|a:next", "1"),
		}))
		DeepEqual(t, must[[]string](t)(s.Scan(ctx, "p|")), []string{"p|a:data:1", "p|a:keys", "p|a:next", "p|ab:keys"})
		DeepEqual(t, must[map[string]string](t)(s.HGetAll(ctx, "p|a:data:1")), map[string]string{"y": "2"})
		v, _, err := s.Get(ctx, "q")
		ensure(t, err)
		if v != "1" {
			t.Errorf("key outside prefix changed: %q", v)
		}

		ensure(t, s.Replace(ctx, "p|a:", nil))
		DeepEqual(t, must[[]string](t)(s.Scan(ctx, "p|")), []string{"p|ab:keys"})
	})
}

// SpyStore wraps a Store and records every write command it passes on.
type SpyStore struct {
	rom.Store

	mu   sync.Mutex
	cmds []rom.Cmd
}

func NewSpy(s rom.Store) *SpyStore {
	return &SpyStore{Store: s}
}

func (s *SpyStore) Exec(ctx context.Context, cmds []rom.Cmd) error {
	s.record(cmds)
	return s.Store.Exec(ctx, cmds)
}

func (s *SpyStore) Replace(ctx context.Context, prefix string, cmds []rom.Cmd) error {
	s.record(cmds)
	return s.Store.Replace(ctx, prefix, cmds)
}

func (s *SpyStore) record(cmds []rom.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmds...)
}

// Take returns the commands recorded since the last call.
func (s *SpyStore) Take() []rom.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.cmds
	s.cmds = nil
	return cmds
}

// IndexMutations filters cmds down to index set updates.
func IndexMutations(cmds []rom.Cmd) []rom.Cmd {
	var out []rom.Cmd
	for _, c := range cmds {
		if c.IsIndexMutation() {
			out = append(out, c)
		}
	}
	return out
}

func Sorted(a []string) []string {
	if a == nil {
		return nil
	}
	a = slices.Clone(a)
	slices.Sort(a)
	if len(a) == 0 {
		return nil
	}
	return a
}

func DeepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func must[T any](t testing.TB) func(v T, err error) T {
	return func(v T, err error) T {
		if err != nil {
			t.Helper()
			t.Fatal(err)
		}
		return v
	}
}

func ensure(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatal(err)
	}
}
