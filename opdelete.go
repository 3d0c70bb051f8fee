package rom

import "context"

// Delete removes rec from the store and clears its primary key. Index entries
// are removed using the tokens stored at the last save or load, so unsaved in-memory changes do not
// leave stale entries behind. Returns false if rec was never saved.
func (db *DB) Delete(ctx context.Context, rec *Record) (bool, error) {
	n, err := db.DeleteAll(ctx, rec)
	return n > 0, err
}

// DeleteAll deletes many records in one pipelined batch and returns how many
// had primary keys.
func (db *DB) DeleteAll(ctx context.Context, recs ...*Record) (int, error) {
	var cmds []Cmd
	var deleted []*Record
	for _, rec := range recs {
		if rec == nil {
			panic("rom: nil record")
		}
		if rec.pk == 0 {
			if db.verbose {
				db.logf("rom: DELETE.NOOP %s", rec.model.namespace)
			}
			continue
		}
		if err := rec.model.Err(); err != nil {
			return 0, err
		}
		var err error
		cmds, err = db.deleteCmds(cmds, rec)
		if err != nil {
			return 0, err
		}
		deleted = append(deleted, rec)
	}

	if err := db.exec(ctx, cmds); err != nil {
		return 0, err
	}

	for _, rec := range deleted {
		if db.verbose {
			db.logf("rom: DELETE %s/%d", rec.model.namespace, rec.pk)
		}
		rec.pk = 0
		rec.orig = nil
	}
	return len(deleted), nil
}

func (db *DB) deleteCmds(cmds []Cmd, rec *Record) ([]Cmd, error) {
	m := rec.model
	pkStr := formatPK(rec.pk)
	cmds = append(cmds, Del(db.recordKey(m, rec.pk)), SRem(db.allKeysKey(m), pkStr))
	snap := rec.orig
	if snap == nil {
		var err error
		if snap, err = rec.stored(); err != nil {
			return nil, err
		}
	}
	for i, f := range m.fields {
		if f.indexed {
			cmds = append(cmds, SRem(db.indexKey(m, f, snap[i].token), pkStr))
		}
	}
	return cmds, nil
}
