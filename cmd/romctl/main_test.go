package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/rom"
)

func seed(t *testing.T, path string) {
	s, err := rom.OpenBoltStore(path, rom.BoltOptions{IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	db := rom.Open(s, rom.Options{})
	m := rom.NewModel("users", rom.String("email").Indexed())
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := db.Save(ctx, db.MustNew(m, map[string]any{"email": email})); err != nil {
			t.Fatal(err)
		}
	}
}

func romctl(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer
	err := run(context.Background(), args, &buf)
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	seed(t, path)

	out, err := romctl(t, "--bolt", path, "namespaces")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "users") || !strings.Contains(out, "2") {
		t.Errorf("namespaces = %q", out)
	}

	out, err = romctl(t, "--bolt", path, "next", "users")
	if err != nil {
		t.Fatal(err)
	}
	if out != "3\n" {
		t.Errorf("next = %q, wanted 3", out)
	}

	out, err = romctl(t, "--bolt", path, "dump", "users")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "b@example.com") {
		t.Errorf("dump = %q", out)
	}

	if _, err = romctl(t, "--bolt", path, "destroy", "users"); err != nil {
		t.Fatal(err)
	}
	out, err = romctl(t, "--bolt", path, "next", "users")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1\n" {
		t.Errorf("next after destroy = %q, wanted 1", out)
	}
}

func TestUsageErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	tests := []struct {
		args []string
		err  string
	}{
		{[]string{"namespaces"}, "exactly one of"},
		{[]string{"--bolt", path}, "missing command"},
		{[]string{"--bolt", path, "frob"}, "unknown command"},
		{[]string{"--bolt", path, "peek"}, "usage: romctl peek"},
	}
	for _, tt := range tests {
		_, err := romctl(t, tt.args...)
		if err == nil || !strings.Contains(err.Error(), tt.err) {
			t.Errorf("romctl %v: err = %v, wanted %q", tt.args, err, tt.err)
		}
	}
}
