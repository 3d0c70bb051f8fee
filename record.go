package rom

import "fmt"

// Record holds one model instance: a value per field, the primary key (0
// until saved), and the stored form of each field as last saved or loaded,
// which drives update diffs and index cleanup on delete.
type Record struct {
	model  *Model
	cfg    *Config
	pk     int64
	values []any
	orig   []storedField
}

// storedField is a field as written to the store. token is set for indexed
// fields only.
type storedField struct {
	data    string
	present bool
	token   string
}

// New creates an unsaved record with the model's defaults, overridden by values.
func (db *DB) New(m *Model, values map[string]any) (*Record, error) {
	if err := m.Err(); err != nil {
		return nil, err
	}
	rec := &Record{
		model:  m,
		cfg:    db.cfg,
		values: make([]any, len(m.fields)),
	}
	for i, f := range m.fields {
		v, err := f.FromInput(db.cfg, f.def)
		if err != nil {
			return nil, err
		}
		rec.values[i] = v
	}
	for name, v := range values {
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// MustNew is like New, but panics on error.
func (db *DB) MustNew(m *Model, values map[string]any) *Record {
	return must(db.New(m, values))
}

func (rec *Record) Model() *Model { return rec.model }

// PK returns the primary key, or 0 if the record is not saved.
func (rec *Record) PK() int64 { return rec.pk }

func (rec *Record) IsSaved() bool { return rec.pk != 0 }

// Get returns the value of the named field. It panics if there is no such field.
func (rec *Record) Get(name string) any {
	return rec.values[rec.model.fieldPos(rec.model.mustField(name))]
}

// Set normalizes v through the field's codec and assigns it.
func (rec *Record) Set(name string, v any) error {
	f := rec.model.Field(name)
	if f == nil {
		return modelErrf(rec.model.namespace, name, "undeclared field")
	}
	nv, err := f.FromInput(rec.cfg, v)
	if err != nil {
		if ie, ok := err.(*InputError); ok && ie.Namespace == "" {
			ie.Namespace = rec.model.namespace
		}
		return err
	}
	rec.values[rec.model.fieldPos(f)] = nv
	return nil
}

// Values returns a copy of the field values by name.
func (rec *Record) Values() map[string]any {
	out := make(map[string]any, len(rec.values))
	for i, f := range rec.model.fields {
		out[f.name] = rec.values[i]
	}
	return out
}

// Ref returns a reference to this record.
func (rec *Record) Ref() Ref {
	return RefTo(rec)
}

// Changed returns the fields whose stored form differs from the last saved or
// loaded snapshot. For a record that was never saved, every field is changed.
func (rec *Record) Changed() ([]*Field, error) {
	var out []*Field
	for i, f := range rec.model.fields {
		changed, err := rec.fieldChanged(i)
		if err != nil {
			return nil, err
		}
		if changed {
			out = append(out, f)
		}
	}
	return out, nil
}

func (rec *Record) fieldChanged(i int) (bool, error) {
	if rec.orig == nil {
		return true, nil
	}
	f := rec.model.fields[i]
	cur, curOK, err := f.Encode(rec.cfg, rec.values[i])
	if err != nil {
		return false, err
	}
	old := rec.orig[i]
	return curOK != old.present || cur != old.data, nil
}

// stored encodes the current values. Values are mutable (JSON maps, byte
// slices), so diffs are taken against this encoded form and never against
// the values themselves.
func (rec *Record) stored() ([]storedField, error) {
	m := rec.model
	out := make([]storedField, len(m.fields))
	for i, f := range m.fields {
		v := rec.values[i]
		data, present, err := f.Encode(rec.cfg, v)
		if err != nil {
			return nil, withNamespace(err, m)
		}
		out[i] = storedField{data: data, present: present}
		if f.indexed {
			out[i].token, err = f.Token(rec.cfg, v)
			if err != nil {
				return nil, withNamespace(err, m)
			}
		}
	}
	return out, nil
}

func (rec *Record) snapshot() error {
	s, err := rec.stored()
	if err != nil {
		return err
	}
	rec.orig = s
	return nil
}

// pinRefs copies the primary keys of saved in-memory targets into references,
// so that the field keeps pointing at the same record if the target is later
// deleted or saved again.
func (rec *Record) pinRefs() {
	for i, f := range rec.model.fields {
		if f.Kind() != KindReference {
			continue
		}
		if ref, ok := rec.values[i].(Ref); ok && ref.ID == 0 && ref.rec != nil && ref.rec.pk != 0 {
			ref.ID = ref.rec.pk
			rec.values[i] = ref
		}
	}
}

func (rec *Record) String() string {
	if rec.pk == 0 {
		return fmt.Sprintf("%s/new", rec.model.namespace)
	}
	return fmt.Sprintf("%s/%d", rec.model.namespace, rec.pk)
}
