package rom

import (
	"context"
	"fmt"
	"strconv"
)

// ReplaceAll makes recs the entire dataset of m. Everything stored under m's
// namespace is discarded, the records are inserted with primary keys 1..N in
// order, and the id counter is set so the next insert gets N+1.
//
// The work runs through Store.Replace, so other clients observe either the old
// or the new dataset. If Replace fails, what the store holds is up to the
// store's own failure semantics; the records are left unsaved in memory.
func (db *DB) ReplaceAll(ctx context.Context, m *Model, recs []*Record) error {
	if err := m.Err(); err != nil {
		return err
	}
	var cmds []Cmd
	snaps := make([][]storedField, len(recs))
	seen := make(map[*Record]bool, len(recs))
	for i, rec := range recs {
		if rec == nil {
			panic("rom: nil record")
		}
		if rec.model != m {
			return &InputError{Namespace: m.namespace, Value: rec, Msg: "record of another model"}
		}
		if seen[rec] {
			return &InputError{Namespace: m.namespace, Value: rec, Msg: "record appears twice in one batch"}
		}
		seen[rec] = true
		rec.pinRefs()
		snap, err := rec.stored()
		if err != nil {
			return err
		}
		snaps[i] = snap
		cmds = db.insertCmds(cmds, m, int64(i+1), snap)
	}
	if len(recs) > 0 {
		cmds = append(cmds, Set(db.nextKey(m), strconv.Itoa(len(recs))))
	}

	if err := db.replace(ctx, m, cmds); err != nil {
		return err
	}
	if db.verbose {
		db.logf("rom: REPLACE %s => %d records", m.namespace, len(recs))
	}
	for i, rec := range recs {
		rec.pk = int64(i + 1)
		rec.orig = snaps[i]
	}
	return nil
}

// Reindex rewrites every record of m and rebuilds its index sets under the
// model's current field definitions, keeping primary keys and the id counter.
// Use it after making a field indexed or changing how a field rounds or
// tokenizes values.
//
// The records are read before the atomic rewrite, so writes that land in
// between are lost.
func (db *DB) Reindex(ctx context.Context, m *Model) (int, error) {
	if err := m.Err(); err != nil {
		return 0, err
	}
	db.ReadCount.Add(1)
	members, err := db.store.SMembers(ctx, db.allKeysKey(m))
	if err != nil {
		return 0, err
	}
	pks, err := parsePKs(members)
	if err != nil {
		return 0, err
	}
	recs, err := db.GetMany(ctx, m, pks)
	if err != nil {
		return 0, err
	}
	db.ReadCount.Add(1)
	next, ok, err := db.store.Get(ctx, db.nextKey(m))
	if err != nil {
		return 0, err
	}

	var cmds []Cmd
	var n int
	var maxPK int64
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		cmds = db.insertCmds(cmds, m, rec.pk, rec.orig)
		maxPK = max(maxPK, rec.pk)
		n++
	}
	if !ok {
		next = strconv.FormatInt(maxPK, 10)
	}
	if ok || maxPK > 0 {
		cmds = append(cmds, Set(db.nextKey(m), next))
	}

	if err := db.replace(ctx, m, cmds); err != nil {
		return 0, err
	}
	if db.verbose {
		db.logf("rom: REINDEX %s => %d records", m.namespace, n)
	}
	return n, nil
}

// DestroyAll deletes every record, index entry and the id counter of m.
func (db *DB) DestroyAll(ctx context.Context, m *Model) error {
	if err := m.Err(); err != nil {
		return err
	}
	return db.replace(ctx, m, nil)
}

// DestroyNamespace is DestroyAll for a namespace without a Model at hand.
func (db *DB) DestroyNamespace(ctx context.Context, ns string) error {
	if !validName(ns) {
		return modelErrf(ns, "", "invalid namespace")
	}
	db.ReplaceCount.Add(1)
	return db.store.Replace(ctx, NamespacePrefix(db.cfg.Prefix, ns), nil)
}

func (db *DB) replace(ctx context.Context, m *Model, cmds []Cmd) error {
	db.ReplaceCount.Add(1)
	err := db.store.Replace(ctx, db.prefix(m), cmds)
	if err != nil {
		db.ErrorCount.Add(1)
		return fmt.Errorf("replacing %s: %w", m.namespace, err)
	}
	return nil
}
