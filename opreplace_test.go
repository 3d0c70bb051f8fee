package rom_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andreyvit/rom"
)

func TestReplaceAll(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		for i := 0; i < 5; i++ {
			e.save(t, users, map[string]any{"email": "old"})
		}
		other := e.save(t, pairs, map[string]any{"a": 1})

		recs := []*rom.Record{
			e.db.MustNew(users, map[string]any{"email": "x"}),
			e.db.MustNew(users, map[string]any{"email": "y"}),
			e.db.MustNew(users, map[string]any{"email": "x", "active": false}),
		}
		ensure(t, e.db.ReplaceAll(ctx, users, recs))
		deepEqual(t, pksOf(recs), []int64{1, 2, 3})

		deepEqual(t, e.pks(t, e.db.Query(users)), []int64{1, 2, 3})
		deepEqual(t, e.pks(t, e.db.Query(users).Filter("email", "x")), []int64{1, 3})
		deepEqual(t, e.pks(t, e.db.Query(users).Filter("active", false)), []int64{3})
		deepEqual(t, e.members(t, "t|users:idx:email:=old"), []string(nil))
		deepEqual(t, must[bool](t)(e.db.Exists(ctx, users, 4)), false)

		deepEqual(t, must[int64](t)(e.db.PeekNextID(ctx, users)), int64(4))
		deepEqual(t, e.save(t, users, nil).PK(), int64(4))

		// Other namespaces are untouched.
		deepEqual(t, must[bool](t)(e.db.Exists(ctx, pairs, other.PK())), true)

		// The replaced records are saved and diff against what was written.
		ensure(t, recs[1].Set("email", "z"))
		must[int64](t)(e.db.Save(ctx, recs[1]))
		deepEqual(t, e.pks(t, e.db.Query(users).Filter("email", "z")), []int64{2})
	})
}

func TestReplaceAllEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		e.save(t, users, map[string]any{"email": "a"})
		ensure(t, e.db.ReplaceAll(ctx, users, nil))
		deepEqual(t, e.keys(t, "t|users:"), []string(nil))
		deepEqual(t, must[int64](t)(e.db.PeekNextID(ctx, users)), int64(1))
	})
}

func TestReplaceAllRejectsForeignRecords(t *testing.T) {
	e := newEnv(t, rom.NewMemStore())
	e.save(t, users, map[string]any{"email": "a"})
	err := e.db.ReplaceAll(ctx, users, []*rom.Record{e.db.MustNew(pairs, nil)})
	wantErr[*rom.InputError](t, err)
	deepEqual(t, e.pks(t, e.db.Query(users)), []int64{1})
}

func TestReplaceAllIsAtomic(t *testing.T) {
	store := rom.NewMemStore()
	e := newEnv(t, store)
	e.save(t, users, map[string]any{"email": "a"})

	store.FailAfter = 3
	err := e.db.ReplaceAll(ctx, users, []*rom.Record{
		e.db.MustNew(users, map[string]any{"email": "b"}),
		e.db.MustNew(users, map[string]any{"email": "c"}),
	})
	if err == nil {
		t.Fatal("ReplaceAll succeeded")
	}
	deepEqual(t, e.pks(t, e.db.Query(users).Filter("email", "a")), []int64{1})
	deepEqual(t, e.pks(t, e.db.Query(users).Filter("email", "b")), []int64{})
}

func TestReindexAfterPrecisionChange(t *testing.T) {
	v1 := rom.NewModel("prices", rom.Decimal("price", 4).Indexed())
	v2 := rom.NewModel("prices", rom.Decimal("price", 2).Indexed())
	forEachStore(t, func(t *testing.T, e *env) {
		e.save(t, v1, map[string]any{"price": "1.2345"})
		e.save(t, v1, map[string]any{"price": "1.2300"})

		// Tokens written at the old precision no longer match.
		deepEqual(t, e.pks(t, e.db.Query(v2).Filter("price", "1.23")), []int64{})

		deepEqual(t, must[int](t)(e.db.Reindex(ctx, v2)), 2)
		deepEqual(t, e.pks(t, e.db.Query(v2).Filter("price", "1.23")), []int64{1, 2})
		deepEqual(t, e.hash(t, "t|prices:data:1")["price"], "1.23")
		rec := must[*rom.Record](t)(e.db.Get(ctx, v2, 1))
		deepEqual(t, rec.Get("price").(decimal.Decimal).String(), "1.23")

		deepEqual(t, must[int64](t)(e.db.PeekNextID(ctx, v2)), int64(3))
		deepEqual(t, e.keys(t, "t|prices:idx:"), []string{"t|prices:idx:price:=1.23"})
	})
}

func TestDestroy(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		e.save(t, users, map[string]any{"email": "a"})
		e.save(t, pairs, map[string]any{"a": 1})
		lookalike := users.Clone("users2")
		e.save(t, lookalike, map[string]any{"email": "a"})

		ensure(t, e.db.DestroyAll(ctx, users))
		deepEqual(t, e.keys(t, "t|users:"), []string(nil))
		deepEqual(t, must[int64](t)(e.db.Query(lookalike).Count(ctx)), int64(1))

		ensure(t, e.db.DestroyNamespace(ctx, "pairs"))
		deepEqual(t, e.keys(t, "t|pairs:"), []string(nil))
		deepEqual(t, must[[]string](t)(e.db.Namespaces(ctx)), []string{"users2"})

		wantErr[*rom.ModelError](t, e.db.DestroyNamespace(ctx, "a:b"))
	})
}
