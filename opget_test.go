package rom_test

import (
	"testing"

	"github.com/andreyvit/rom"
)

func TestGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		u := e.save(t, users, map[string]any{"email": "a@example.com", "name": "A", "age": 7})

		loaded := must[*rom.Record](t)(e.db.Get(ctx, users, u.PK()))
		deepEqual(t, loaded.Values(), u.Values())
		deepEqual(t, loaded.String(), "users/1")

		_, err := e.db.Get(ctx, users, 99)
		deepEqual(t, rom.IsNotFound(err), true)
		re := wantErr[*rom.RecordError](t, err)
		deepEqual(t, re.PK, int64(99))

		recs := must[[]*rom.Record](t)(e.db.GetMany(ctx, users, []int64{99, 1}))
		deepEqual(t, len(recs), 2)
		if recs[0] != nil || recs[1] == nil || recs[1].PK() != 1 {
			t.Errorf("GetMany = %v", recs)
		}

		deepEqual(t, must[bool](t)(e.db.Exists(ctx, users, 1)), true)
		deepEqual(t, must[bool](t)(e.db.Exists(ctx, users, 2)), false)
	})
}

func TestGetAllNullRecord(t *testing.T) {
	m := rom.NewModel("notes", rom.String("text"))
	forEachStore(t, func(t *testing.T, e *env) {
		rec := e.save(t, m, nil)
		loaded := must[*rom.Record](t)(e.db.Get(ctx, m, rec.PK()))
		deepEqual(t, rom.IsNull(loaded.Get("text")), true)
	})
}

func TestGetCorruptData(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		e.save(t, users, map[string]any{"email": "a"})
		ensure(t, e.store.Exec(ctx, []rom.Cmd{rom.HSet("t|users:data:1", "active", "yes")}))

		_, err := e.db.Get(ctx, users, 1)
		re := wantErr[*rom.RecordError](t, err)
		deepEqual(t, re.Field, "active")
		wantErr[*rom.DataError](t, err)

		ensure(t, e.store.Exec(ctx, []rom.Cmd{rom.HSet("t|users:data:1", "_id", "2")}))
		_, err = e.db.Get(ctx, users, 1)
		wantErr[*rom.DataError](t, err)
	})
}

func TestReload(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		u := e.save(t, users, map[string]any{"email": "a"})
		other := must[*rom.Record](t)(e.db.Get(ctx, users, u.PK()))
		ensure(t, other.Set("email", "b"))
		must[int64](t)(e.db.Save(ctx, other))

		ensure(t, e.db.Reload(ctx, u))
		deepEqual(t, u.Get("email"), any("b"))
		deepEqual(t, len(must[[]*rom.Field](t)(u.Changed())), 0)

		fresh := e.db.MustNew(users, nil)
		wantErr[*rom.InputError](t, e.db.Reload(ctx, fresh))
	})
}

func TestDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *env) {
		u := e.save(t, users, map[string]any{"email": "a@example.com"})
		keep := e.save(t, users, map[string]any{"email": "b@example.com"})

		// Unsaved edits must not confuse index cleanup.
		ensure(t, u.Set("email", "changed@example.com"))
		ensure(t, u.Set("active", false))
		deepEqual(t, must[bool](t)(e.db.Delete(ctx, u)), true)
		deepEqual(t, u.PK(), int64(0))
		deepEqual(t, u.IsSaved(), false)

		deepEqual(t, e.keys(t, "t|users:"), []string{
			"t|users:data:2",
			"t|users:idx:active:=1",
			"t|users:idx:email:=b@example.com",
			"t|users:keys",
			"t|users:next",
		})
		deepEqual(t, e.members(t, "t|users:keys"), []string{"2"})

		deepEqual(t, must[bool](t)(e.db.Delete(ctx, u)), false)

		n := must[int](t)(e.db.DeleteAll(ctx, keep, e.db.MustNew(users, nil)))
		deepEqual(t, n, 1)
		deepEqual(t, e.keys(t, "t|users:"), []string{"t|users:next"})

		// Deleted primary keys are not reused.
		deepEqual(t, e.save(t, users, nil).PK(), int64(3))
	})
}
