package rom

import (
	"context"
	"errors"
	"strconv"
)

// Get loads the record with primary key pk. It returns ErrNotFound if no
// record hash exists, and a *RecordError wrapping a *DataError if a stored
// field fails to decode.
func (db *DB) Get(ctx context.Context, m *Model, pk int64) (*Record, error) {
	recs, err := db.GetMany(ctx, m, []int64{pk})
	if err != nil {
		return nil, err
	}
	if recs[0] == nil {
		return nil, &RecordError{Namespace: m.namespace, PK: pk, Err: ErrNotFound}
	}
	return recs[0], nil
}

// GetMany loads records in one round trip. The result has an entry per
// primary key, nil for keys that have no record.
func (db *DB) GetMany(ctx context.Context, m *Model, pks []int64) ([]*Record, error) {
	if err := m.Err(); err != nil {
		return nil, err
	}
	if len(pks) == 0 {
		return nil, nil
	}
	keys := make([]string, len(pks))
	for i, pk := range pks {
		keys[i] = db.recordKey(m, pk)
	}
	db.ReadCount.Add(1)
	hashes, err := db.store.HGetAllBatch(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, len(pks))
	for i, h := range hashes {
		out[i], err = db.decodeRecord(m, pks[i], h)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Exists reports whether a record with primary key pk is live.
func (db *DB) Exists(ctx context.Context, m *Model, pk int64) (bool, error) {
	if err := m.Err(); err != nil {
		return false, err
	}
	db.ReadCount.Add(1)
	return db.store.SIsMember(ctx, db.allKeysKey(m), formatPK(pk))
}

// Reload replaces rec's values and snapshot with the stored ones.
func (db *DB) Reload(ctx context.Context, rec *Record) error {
	if rec.pk == 0 {
		return &InputError{Namespace: rec.model.namespace, Msg: "record is not saved"}
	}
	fresh, err := db.Get(ctx, rec.model, rec.pk)
	if err != nil {
		return err
	}
	rec.values = fresh.values
	rec.orig = fresh.orig
	return nil
}

// Resolve loads the record a reference points at. m must be the model of the
// referenced namespace.
func (db *DB) Resolve(ctx context.Context, ref Ref, m *Model) (*Record, error) {
	if ref.Namespace != m.namespace {
		return nil, &InputError{Namespace: m.namespace, Value: ref, Msg: "reference is to another namespace"}
	}
	id := ref.ID
	if id == 0 && ref.rec != nil {
		id = ref.rec.pk
	}
	if id == 0 {
		return nil, &InputError{Namespace: m.namespace, Value: ref, Msg: "reference to an unsaved record"}
	}
	return db.Get(ctx, m, id)
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// decodeRecord returns nil for an empty hash, which is how a missing record
// reads.
func (db *DB) decodeRecord(m *Model, pk int64, h map[string]string) (*Record, error) {
	if len(h) == 0 {
		return nil, nil
	}
	if s, ok := h[idHashField]; ok && s != strconv.FormatInt(pk, 10) {
		return nil, &RecordError{Namespace: m.namespace, PK: pk, Err: dataErrf([]byte(s), 0, nil, "primary key mismatch")}
	}
	rec := &Record{
		model:  m,
		cfg:    db.cfg,
		pk:     pk,
		values: make([]any, len(m.fields)),
	}
	for i, f := range m.fields {
		data, present := h[f.name]
		v, err := f.Decode(db.cfg, data, present)
		if err != nil {
			return nil, &RecordError{Namespace: m.namespace, PK: pk, Field: f.name, Err: err}
		}
		rec.values[i] = v
	}
	if err := rec.snapshot(); err != nil {
		return nil, &RecordError{Namespace: m.namespace, PK: pk, Err: err}
	}
	return rec, nil
}
