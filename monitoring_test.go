package rom_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourcegraph/conc"

	"github.com/andreyvit/rom"
)

func TestDump(t *testing.T) {
	e := newEnv(t, rom.NewMemStore())
	for i := 1; i <= 10; i++ {
		e.save(t, pairs, map[string]any{"a": i % 2, "b": i})
	}
	s := must[string](t)(e.db.Dump(ctx, pairs, rom.DumpAll))
	for _, want := range []string{
		"pairs (",
		"pairs.next = 10",
		`data:2 = {_id: "2", a: "0", b: "2"}`,
		"idx:a:=1 = {1, 3, 5, 7, 9}",
		"keys = {1, 2, 3, 4, 5, 6, 7, 8, 9, 10}",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("dump lacks %q:\n%s", want, s)
		}
	}

	s = must[string](t)(e.db.DumpNamespace(ctx, "pairs", rom.DumpIndices))
	if strings.Contains(s, "data:") || strings.Contains(s, "next") {
		t.Errorf("DumpIndices included records or headers:\n%s", s)
	}
}

func TestStats(t *testing.T) {
	e := newEnv(t, rom.NewMemStore())
	seedPairs(t, e)
	must[int64](t)(e.db.Query(pairs).Filter("a", 1).Count(ctx))
	must[*rom.Record](t)(e.db.Get(ctx, pairs, 1))
	ensure(t, e.db.ReplaceAll(ctx, pairs, nil))

	st := e.db.Stats()
	deepEqual(t, st.Queries, uint64(1))
	deepEqual(t, st.Replaces, uint64(1))
	deepEqual(t, st.Errors, uint64(0))
	if st.Reads == 0 || st.Writes < 6 {
		t.Errorf("Stats = %+v", st)
	}

	reg := prometheus.NewPedanticRegistry()
	ensure(t, reg.Register(e.db.Collector()))
	deepEqual(t, testutil.CollectAndCount(reg, "rom_db_operations_total"), 5)
}

func TestNamespaceStats(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		seedPairs(t, e)
		e.save(t, users, nil)

		st := must[rom.NamespaceStats](t)(e.db.NamespaceStats(ctx, "pairs"))
		deepEqual(t, st, rom.NamespaceStats{
			Namespace: "pairs",
			Records:   3,
			IndexSets: 4,
			NextID:    4,
			TotalKeys: 9,
		})
		deepEqual(t, must[[]string](t)(e.db.Namespaces(ctx)), []string{"pairs", "users"})

		empty := must[rom.NamespaceStats](t)(e.db.NamespaceStats(ctx, "nothing"))
		deepEqual(t, empty, rom.NamespaceStats{Namespace: "nothing", NextID: 1})
	})
}

func TestConcurrentInserts(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		const n = 20
		pks := make([]int64, n)
		var wg conc.WaitGroup
		for i := range n {
			wg.Go(func() {
				rec := e.db.MustNew(pairs, map[string]any{"a": i % 3, "b": i})
				pk, err := e.db.Save(ctx, rec)
				if err != nil {
					t.Error(err)
				}
				pks[i] = pk
			})
		}
		wg.Wait()

		deepEqual(t, len(pksOf(must[[]*rom.Record](t)(e.db.Query(pairs).All(ctx)))), n)
		seen := make(map[int64]bool)
		for _, pk := range pks {
			if pk < 1 || pk > n || seen[pk] {
				t.Errorf("unexpected pk %d in %v", pk, pks)
			}
			seen[pk] = true
		}
		deepEqual(t, must[int64](t)(e.db.Query(pairs).Filter("a", 0).Count(ctx)), int64(7))
	})
}

func TestQueryReadsAreCounted(t *testing.T) {
	e := newEnv(t, rom.NewMemStore())
	seedPairs(t, e)
	reads := func(f func()) uint64 {
		before := e.db.Stats().Reads
		f()
		return e.db.Stats().Reads - before
	}
	deepEqual(t, reads(func() {
		must[int64](t)(e.db.Query(pairs).Filter("a", 1).Count(ctx))
	}), uint64(1))
	deepEqual(t, reads(func() {
		must[[]int64](t)(e.db.Query(pairs).Filter("a", 1).Filter("b", 1).FilterNot("b", 2).PKs(ctx))
	}), uint64(2))
	deepEqual(t, reads(func() {
		must[int](t)(e.db.Reindex(ctx, pairs))
	}) >= 3, true)
}
