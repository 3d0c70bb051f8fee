package rom

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpIndices

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// DumpNamespace renders the raw contents of a namespace: the counter, the
// record hashes and the index sets, in key order.
func (db *DB) DumpNamespace(ctx context.Context, ns string, f DumpFlags) (string, error) {
	prefix := NamespacePrefix(db.cfg.Prefix, ns)
	keys, err := db.store.Scan(ctx, prefix)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if f.Contains(DumpHeaders) {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "%s (%d keys)\n", ns, len(keys))
	}
	var recordKeys, setKeys []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		switch {
		case rest == "next":
			v, _, err := db.store.Get(ctx, key)
			if err != nil {
				return "", err
			}
			if f.Contains(DumpHeaders) {
				fmt.Fprintf(&buf, "%s.next = %s\n", ns, v)
			}
		case strings.HasPrefix(rest, "data:"):
			recordKeys = append(recordKeys, key)
		case rest == "keys" || strings.HasPrefix(rest, "idx:"):
			setKeys = append(setKeys, key)
		}
	}

	if f.Contains(DumpRecords) && len(recordKeys) > 0 {
		fmt.Fprintln(&buf, dumpSep2)
		hashes, err := db.store.HGetAllBatch(ctx, recordKeys)
		if err != nil {
			return "", err
		}
		for i, key := range recordKeys {
			fmt.Fprintf(&buf, "%s = %s\n", strings.TrimPrefix(key, prefix), formatHash(hashes[i]))
		}
	}

	if f.Contains(DumpIndices) && len(setKeys) > 0 {
		fmt.Fprintln(&buf, dumpSep2)
		for _, key := range setKeys {
			members, err := db.store.SMembers(ctx, key)
			if err != nil {
				return "", err
			}
			slices.SortFunc(members, compareNumeric)
			fmt.Fprintf(&buf, "%s = {%s}\n", strings.TrimPrefix(key, prefix), strings.Join(members, ", "))
		}
	}
	return buf.String(), nil
}

// Dump is DumpNamespace for a model.
func (db *DB) Dump(ctx context.Context, m *Model, f DumpFlags) (string, error) {
	if err := m.Err(); err != nil {
		return "", err
	}
	return db.DumpNamespace(ctx, m.namespace, f)
}

func formatHash(h map[string]string) string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	slices.Sort(names)
	var buf strings.Builder
	buf.WriteByte('{')
	for i, k := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %q", k, h[k])
	}
	buf.WriteByte('}')
	return buf.String()
}

// compareNumeric orders decimal strings numerically when both are numbers.
func compareNumeric(a, b string) int {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
