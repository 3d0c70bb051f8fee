package rom

import "testing"

func TestKeyLayout(t *testing.T) {
	deepEqual(t, NamespacePrefix("app", "users"), "app|users:")
	deepEqual(t, RecordKey("app", "users", 42), "app|users:data:42")
	deepEqual(t, AllKeysSetKey("app", "users"), "app|users:keys")
	deepEqual(t, IndexSetKey("app", "users", "email", "=a@b"), "app|users:idx:email:=a@b")
	deepEqual(t, NextIDKey("app", "users"), "app|users:next")

	tmp := tempKey("app", "users")
	if len(tmp) != len("app|users:tmp:")+36 || tmp[:len("app|users:tmp:")] != "app|users:tmp:" {
		t.Errorf("tempKey = %q", tmp)
	}
	if tempKey("app", "users") == tmp {
		t.Errorf("tempKey is not unique")
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		key string
		ns  string
		ok  bool
	}{
		{"app|users:data:1", "users", true},
		{"app|users:keys", "users", true},
		{"app|users", "", false},
		{"other|users:keys", "", false},
		{"appx|users:keys", "", false},
	}
	for _, tt := range tests {
		ns, ok := ParseNamespace("app", tt.key)
		if ns != tt.ns || ok != tt.ok {
			t.Errorf("ParseNamespace(%q) = %q, %v, wanted %q, %v", tt.key, ns, ok, tt.ns, tt.ok)
		}
	}
}

func TestValidName(t *testing.T) {
	for _, s := range []string{"users", "user_profiles", "a-b.c"} {
		if !validName(s) {
			t.Errorf("validName(%q) = false", s)
		}
	}
	for _, s := range []string{"", "a:b", "a|b"} {
		if validName(s) {
			t.Errorf("validName(%q) = true", s)
		}
	}
}
