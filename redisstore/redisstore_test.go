package redisstore

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/andreyvit/rom"
	"github.com/andreyvit/rom/romtest"
)

func setup(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), mr
}

func TestStore(t *testing.T) {
	romtest.RunStoreTests(t, func(t *testing.T) rom.Store {
		s, _ := setup(t)
		return s
	})
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"app|users:", "app|users:"},
		{"a*b?[c]", `a\*b\?\[c\]`},
		{`x\y`, `x\\y`},
	}
	for _, tt := range tests {
		if a := escapeGlob(tt.in); a != tt.out {
			t.Errorf("escapeGlob(%q) = %q, wanted %q", tt.in, a, tt.out)
		}
	}
}

func TestReplaceLeavesGlobLookalikes(t *testing.T) {
	ctx := context.Background()
	s, mr := setup(t)
	mr.Set("p|a*:next", "1")
	mr.Set("p|ab:next", "2")

	err := s.Replace(ctx, "p|a*:", []rom.Cmd{rom.Set("p|a*:next", "5")})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := mr.Get("p|a*:next"); v != "5" {
		t.Errorf("p|a*:next = %q, wanted 5", v)
	}
	if v, _ := mr.Get("p|ab:next"); v != "2" {
		t.Errorf("p|ab:next = %q, wanted 2", v)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	db := rom.Open(s, rom.Options{Config: &rom.Config{Prefix: "test"}})

	users := rom.NewModel("users",
		rom.String("name").Indexed(),
		rom.Integer("age"),
	)
	if err := users.Err(); err != nil {
		t.Fatal(err)
	}
	u := db.MustNew(users, map[string]any{"name": "alice", "age": 30})
	if _, err := db.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := db.Query(users).Filter("name", "alice").First(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.PK() != u.PK() || got.Get("age") != int64(30) {
		t.Errorf("First = %v, wanted %v", got, u)
	}
}

func TestEmptyIntersectionLeavesNoTempKeys(t *testing.T) {
	ctx := context.Background()
	s, mr := setup(t)
	db := rom.Open(s, rom.Options{Config: &rom.Config{Prefix: "test"}})
	pairs := rom.NewModel("pairs", rom.String("a").Indexed(), rom.String("b").Indexed())
	for _, v := range []map[string]any{{"a": "1", "b": "y"}, {"a": "2", "b": "x"}} {
		if _, err := db.Save(ctx, db.MustNew(pairs, v)); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.Query(pairs).Filter("a", "1").Filter("b", "x").Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count = %d, wanted 0", n)
	}
	for _, key := range mr.Keys() {
		if strings.Contains(key, ":tmp:") {
			t.Errorf("leftover key %q", key)
		}
	}
}
