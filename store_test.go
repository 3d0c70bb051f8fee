package rom_test

import (
	"testing"

	"github.com/andreyvit/rom"
	"github.com/andreyvit/rom/romtest"
)

func TestMemStore(t *testing.T) {
	romtest.RunStoreTests(t, func(t *testing.T) rom.Store {
		return rom.NewMemStore()
	})
}

func TestBoltStore(t *testing.T) {
	romtest.RunStoreTests(t, func(t *testing.T) rom.Store {
		return openBolt(t)
	})
}

func TestStoreWrongType(t *testing.T) {
	for name, s := range map[string]rom.Store{"mem": rom.NewMemStore(), "bolt": openBolt(t)} {
		ensure(t, s.Exec(ctx, []rom.Cmd{rom.Set("k", "v")}))
		if _, err := s.SMembers(ctx, "k"); err == nil {
			t.Errorf("%s: SMembers of a string succeeded", name)
		}
		if err := s.Exec(ctx, []rom.Cmd{rom.HSet("k", "f", "v")}); err == nil {
			t.Errorf("%s: HSET of a string succeeded", name)
		}
	}
}

func TestMemStoreFailAfter(t *testing.T) {
	s := rom.NewMemStore()
	s.FailAfter = 2
	err := s.Exec(ctx, []rom.Cmd{rom.Set("a", "1"), rom.Set("b", "2"), rom.Set("c", "3")})
	if err == nil {
		t.Fatal("Exec succeeded")
	}
	deepEqual(t, s.Len(), 1)

	ensure(t, s.Exec(ctx, []rom.Cmd{rom.Set("x:1", "1")}))
	s.FailAfter = 2
	err = s.Replace(ctx, "x:", []rom.Cmd{rom.Set("x:2", "2"), rom.Set("x:3", "3")})
	if err == nil {
		t.Fatal("Replace succeeded")
	}
	deepEqual(t, must[[]string](t)(s.Scan(ctx, "")), []string{"a", "x:1"})
}

func TestCmdString(t *testing.T) {
	deepEqual(t, rom.HSet("k", "f", "v").String(), `HSET k f "v"`)
	deepEqual(t, rom.SAdd("p|n:idx:f:=1", "3").String(), `SADD p|n:idx:f:=1 "3"`)
	deepEqual(t, rom.Del("k").String(), "DEL k")
	deepEqual(t, rom.SAdd("p|n:idx:f:=1", "3").IsIndexMutation(), true)
	deepEqual(t, rom.SAdd("p|n:keys", "3").IsIndexMutation(), false)
	deepEqual(t, rom.HSet("p|n:idx:f:=1", "a", "b").IsIndexMutation(), false)
}
