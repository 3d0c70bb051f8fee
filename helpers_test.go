package rom_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/andreyvit/rom"
	"github.com/andreyvit/rom/romtest"
)

var ctx = context.Background()

type env struct {
	db    *rom.DB
	spy   *romtest.SpyStore
	store rom.Store
}

// forEachStore runs f against a fresh in-memory store and a fresh Bolt store.
func forEachStore(t *testing.T, f func(t *testing.T, e *env)) {
	t.Run("mem", func(t *testing.T) {
		f(t, newEnv(t, rom.NewMemStore()))
	})
	t.Run("bolt", func(t *testing.T) {
		f(t, newEnv(t, openBolt(t)))
	})
}

func newEnv(t testing.TB, store rom.Store) *env {
	spy := romtest.NewSpy(store)
	db := rom.Open(spy, rom.Options{
		Config:  &rom.Config{Prefix: "t"},
		Logf:    t.Logf,
		Verbose: testing.Verbose(),
	})
	return &env{db: db, spy: spy, store: store}
}

func openBolt(t testing.TB) *rom.BoltStore {
	t.Helper()
	s := must[*rom.BoltStore](t)(rom.OpenBoltStore(filepath.Join(t.TempDir(), "test.db"), rom.BoltOptions{IsTesting: true}))
	t.Cleanup(func() { s.Close() })
	return s
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

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func wantErr[E error](t testing.TB, err error) E {
	t.Helper()
	var e E
	if !errors.As(err, &e) {
		t.Fatalf("** got error %v (%T), wanted %T", err, err, e)
	}
	return e
}

func (e *env) save(t testing.TB, m *rom.Model, values map[string]any) *rom.Record {
	t.Helper()
	rec := must[*rom.Record](t)(e.db.New(m, values))
	must[int64](t)(e.db.Save(ctx, rec))
	return rec
}

func (e *env) pks(t testing.TB, q *rom.Query) []int64 {
	t.Helper()
	return must[[]int64](t)(q.PKs(ctx))
}

func (e *env) members(t testing.TB, key string) []string {
	t.Helper()
	return romtest.Sorted(must[[]string](t)(e.store.SMembers(ctx, key)))
}

func (e *env) hash(t testing.TB, key string) map[string]string {
	t.Helper()
	return must[map[string]string](t)(e.store.HGetAll(ctx, key))
}

func (e *env) keys(t testing.TB, prefix string) []string {
	t.Helper()
	return must[[]string](t)(e.store.Scan(ctx, prefix))
}

func pksOf(recs []*rom.Record) []int64 {
	var out []int64
	for _, r := range recs {
		out = append(out, r.PK())
	}
	slices.Sort(out)
	return out
}
