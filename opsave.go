package rom

import (
	"context"
	"fmt"
)

type SaveOptions struct {
	// Cascade saves unsaved records referenced by Reference fields first.
	Cascade bool

	// ForceID inserts a single record under this primary key instead of one
	// from the id counter. The counter is left alone, and the key must not
	// belong to a live record.
	ForceID int64
}

// Save persists rec and returns its primary key. A record without a primary
// key is inserted under a newly allocated key; a saved record is updated by
// writing only the fields that changed since it was last saved or loaded.
//
// All writes go out as one pipelined batch. If the batch fails, rec keeps its
// previous primary key and snapshot; the store may hold part of the batch.
func (db *DB) Save(ctx context.Context, rec *Record) (int64, error) {
	pks, err := db.SaveWith(ctx, SaveOptions{}, rec)
	if err != nil {
		return 0, err
	}
	return pks[0], nil
}

// SaveAll saves many records in a single pipelined batch.
func (db *DB) SaveAll(ctx context.Context, recs ...*Record) ([]int64, error) {
	return db.SaveWith(ctx, SaveOptions{}, recs...)
}

func (db *DB) SaveWith(ctx context.Context, opt SaveOptions, recs ...*Record) ([]int64, error) {
	if opt.ForceID != 0 {
		if len(recs) != 1 {
			return nil, &InputError{Value: opt.ForceID, Msg: "ForceID needs exactly one record"}
		}
		if opt.ForceID < 0 {
			return nil, &InputError{Namespace: recs[0].model.namespace, Value: opt.ForceID, Msg: "invalid primary key"}
		}
	}
	if opt.Cascade {
		seen := make(map[*Record]bool)
		for _, rec := range recs {
			seen[rec] = true
		}
		var deps []*Record
		for _, rec := range recs {
			deps = collectUnsavedRefs(rec, seen, deps)
		}
		// deps are ordered so that targets precede the records pointing at them.
		for _, dep := range deps {
			if _, err := db.saveBatch(ctx, []*Record{dep}, 0); err != nil {
				return nil, fmt.Errorf("cascading save of %v: %w", dep, err)
			}
		}
	}
	return db.saveBatch(ctx, recs, opt.ForceID)
}

func collectUnsavedRefs(rec *Record, seen map[*Record]bool, out []*Record) []*Record {
	for i, f := range rec.model.fields {
		if f.Kind() != KindReference {
			continue
		}
		ref, ok := rec.values[i].(Ref)
		if !ok || ref.rec == nil || ref.rec.pk != 0 || seen[ref.rec] {
			continue
		}
		seen[ref.rec] = true
		out = collectUnsavedRefs(ref.rec, seen, out)
		out = append(out, ref.rec)
	}
	return out
}

type pendingSave struct {
	rec    *Record
	pk     int64
	insert bool
	snap   []storedField
}

func (db *DB) saveBatch(ctx context.Context, recs []*Record, forceID int64) ([]int64, error) {
	seen := make(map[*Record]bool, len(recs))
	for _, rec := range recs {
		if rec == nil {
			panic("rom: nil record")
		}
		if seen[rec] {
			return nil, &InputError{Namespace: rec.model.namespace, Value: rec, Msg: "record appears twice in one batch"}
		}
		seen[rec] = true
	}

	pending := make([]pendingSave, 0, len(recs))
	var cmds []Cmd
	for _, rec := range recs {
		if err := rec.model.Err(); err != nil {
			return nil, err
		}
		rec.pinRefs()
		snap, err := rec.stored()
		if err != nil {
			return nil, err
		}
		ps := pendingSave{rec: rec, pk: rec.pk, insert: rec.pk == 0, snap: snap}

		if forceID != 0 {
			ps.pk, ps.insert = forceID, true
			var taken bool
			db.ReadCount.Add(1)
			taken, err = db.store.SIsMember(ctx, db.allKeysKey(rec.model), formatPK(forceID))
			if err != nil {
				return nil, err
			} else if taken {
				return nil, &InputError{Namespace: rec.model.namespace, Value: forceID, Msg: "primary key is in use"}
			}
			cmds = db.insertCmds(cmds, rec.model, forceID, snap)
		} else if ps.insert {
			// snap is already encoded, so invalid records never burn an id.
			ps.pk, err = db.NextID(ctx, rec.model)
			if err != nil {
				return nil, err
			}
			cmds = db.insertCmds(cmds, rec.model, ps.pk, snap)
		} else {
			cmds = db.updateCmds(cmds, rec, snap)
		}
		pending = append(pending, ps)
	}

	if err := db.exec(ctx, cmds); err != nil {
		return nil, err
	}

	pks := make([]int64, len(pending))
	for i, ps := range pending {
		if db.verbose {
			if ps.insert {
				db.logf("rom: SAVE.INSERT %s/%d", ps.rec.model.namespace, ps.pk)
			} else {
				db.logf("rom: SAVE.UPDATE %s/%d", ps.rec.model.namespace, ps.pk)
			}
		}
		ps.rec.pk = ps.pk
		ps.rec.orig = ps.snap
		pks[i] = ps.pk
	}
	return pks, nil
}

// insertCmds appends the commands that write a new record under pk: the full
// hash, membership in the all-keys set, and an entry in the index set of
// every indexed field.
func (db *DB) insertCmds(cmds []Cmd, m *Model, pk int64, snap []storedField) []Cmd {
	key := db.recordKey(m, pk)
	pkStr := formatPK(pk)
	cmds = append(cmds, HSet(key, idHashField, pkStr))
	for i, f := range m.fields {
		if snap[i].present {
			cmds = append(cmds, HSet(key, f.name, snap[i].data))
		}
	}
	cmds = append(cmds, SAdd(db.allKeysKey(m), pkStr))
	for i, f := range m.fields {
		if f.indexed {
			cmds = append(cmds, SAdd(db.indexKey(m, f, snap[i].token), pkStr))
		}
	}
	return cmds
}

// updateCmds appends the commands that bring the stored record in line with
// snap, touching only fields that differ from the last snapshot.
func (db *DB) updateCmds(cmds []Cmd, rec *Record, snap []storedField) []Cmd {
	m := rec.model
	key := db.recordKey(m, rec.pk)
	pkStr := formatPK(rec.pk)
	n := len(cmds)
	for i, f := range m.fields {
		cur := snap[i]
		var old storedField
		if rec.orig != nil {
			old = rec.orig[i]
			if cur == old {
				continue
			}
		}
		if cur.data != old.data || cur.present != old.present || rec.orig == nil {
			if cur.present {
				cmds = append(cmds, HSet(key, f.name, cur.data))
			} else {
				cmds = append(cmds, HDel(key, f.name))
			}
		}
		if !f.indexed || (rec.orig != nil && cur.token == old.token) {
			continue
		}
		if rec.orig != nil {
			cmds = append(cmds, SRem(db.indexKey(m, f, old.token), pkStr))
		}
		cmds = append(cmds, SAdd(db.indexKey(m, f, cur.token), pkStr))
	}
	if len(cmds) == n && db.verbose {
		db.logf("rom: SAVE.NOOP %s/%d", m.namespace, rec.pk)
	}
	return cmds
}

func withNamespace(err error, m *Model) error {
	if ie, ok := err.(*InputError); ok && ie.Namespace == "" {
		ie.Namespace = m.namespace
	}
	return err
}
