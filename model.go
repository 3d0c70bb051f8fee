package rom

import (
	"fmt"
	"strings"
)

// Model is an immutable schema: a namespace plus its field descriptors.
// Definition errors are recorded when the model is built and reported by the
// first operation that uses it.
type Model struct {
	namespace string
	fields    []*Field
	byName    map[string]*Field
	pos       map[*Field]int
	err       error
}

// NewModel defines a model. The fields are copied, so later changes to the
// passed descriptors do not affect the model.
func NewModel(ns string, fields ...*Field) *Model {
	m := &Model{
		namespace: ns,
		fields:    make([]*Field, 0, len(fields)),
		byName:    make(map[string]*Field, len(fields)),
		pos:       make(map[*Field]int, len(fields)),
	}
	for _, f := range fields {
		if f == nil {
			m.fail(modelErrf(ns, "", "nil field"))
			continue
		}
		f = f.clone()
		m.pos[f] = len(m.fields)
		m.fields = append(m.fields, f)
		if _, dup := m.byName[f.name]; dup {
			m.fail(modelErrf(ns, f.name, "duplicate field"))
		}
		m.byName[f.name] = f
	}
	m.validate()
	return m
}

// Clone returns a new model under namespace ns with the same fields plus
// extra ones. The receiver is unchanged.
func (m *Model) Clone(ns string, extra ...*Field) *Model {
	fields := make([]*Field, 0, len(m.fields)+len(extra))
	fields = append(fields, m.fields...)
	fields = append(fields, extra...)
	return NewModel(ns, fields...)
}

func (m *Model) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *Model) validate() {
	ns := m.namespace
	if ns == "" {
		m.fail(modelErrf(ns, "", "missing namespace"))
	} else if !validName(ns) {
		m.fail(modelErrf(ns, "", "namespace must not contain ':' or '|'"))
	}
	if len(m.fields) == 0 {
		m.fail(modelErrf(ns, "", "no fields"))
	}
	for _, f := range m.fields {
		switch {
		case !validName(f.name):
			m.fail(modelErrf(ns, f.name, "invalid field name"))
		case strings.HasPrefix(f.name, "_"):
			m.fail(modelErrf(ns, f.name, "field names starting with '_' are reserved"))
		case f.codec == nil:
			m.fail(modelErrf(ns, f.name, "no codec"))
		default:
			if _, err := f.FromInput(nil, f.def); err != nil {
				m.fail(modelErrf(ns, f.name, "invalid default: %v", err))
			}
		}
	}
}

// Err returns the model definition error, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Namespace() string { return m.namespace }

func (m *Model) Fields() []*Field {
	return append([]*Field(nil), m.fields...)
}

// Field returns the named field, or nil.
func (m *Model) Field(name string) *Field {
	return m.byName[name]
}

// IndexedFields returns the fields that have index entries.
func (m *Model) IndexedFields() []*Field {
	var out []*Field
	for _, f := range m.fields {
		if f.indexed {
			out = append(out, f)
		}
	}
	return out
}

func (m *Model) String() string {
	return m.namespace
}

func (m *Model) fieldPos(f *Field) int {
	i, ok := m.pos[f]
	if !ok {
		panic(fmt.Errorf("rom: field %s does not belong to model %s", f.name, m.namespace))
	}
	return i
}

func (m *Model) mustField(name string) *Field {
	f := m.byName[name]
	if f == nil {
		panic(fmt.Errorf("rom: model %s has no field %q", m.namespace, name))
	}
	return f
}
