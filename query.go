package rom

import (
	"context"
	"slices"
)

// Query selects records of one model by conjunction of equality and
// inequality filters on indexed fields.
//
// Filter and FilterNot return a new query and leave the receiver unchanged,
// so a base query can be extended in several directions. An invalid filter
// makes the query fail: Err reports the error right away, and every
// evaluating method returns it.
//
// The order of results is not part of the contract.
type Query struct {
	db    *DB
	model *Model
	terms []term
	err   error
}

type term struct {
	field   *Field
	token   string
	negated bool
}

// Query starts an unfiltered query over all records of m.
func (db *DB) Query(m *Model) *Query {
	return &Query{db: db, model: m, err: m.Err()}
}

// Filter keeps records whose field equals v.
func (q *Query) Filter(name string, v any) *Query {
	return q.with(name, v, false)
}

// FilterNot drops records whose field equals v.
func (q *Query) FilterNot(name string, v any) *Query {
	return q.with(name, v, true)
}

// Where adds one Filter per map entry.
func (q *Query) Where(filters map[string]any) *Query {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		q = q.Filter(name, filters[name])
	}
	return q
}

func (q *Query) with(name string, v any, negated bool) *Query {
	nq := &Query{
		db:    q.db,
		model: q.model,
		terms: slices.Clip(q.terms),
		err:   q.err,
	}
	if nq.err != nil {
		return nq
	}
	m := q.model
	f := m.Field(name)
	if f == nil {
		nq.err = modelErrf(m.namespace, name, "filter on undeclared field")
		return nq
	}
	if !f.indexed {
		nq.err = &InputError{Namespace: m.namespace, Field: name, Msg: "field is not indexed"}
		return nq
	}
	iv, err := f.FromInput(q.db.cfg, v)
	if err == nil {
		var tok string
		tok, err = f.Token(q.db.cfg, iv)
		if err == nil {
			nq.terms = append(nq.terms, term{f, tok, negated})
			return nq
		}
	}
	nq.err = withNamespace(err, m)
	return nq
}

// Err returns the error that invalidated the query, if any.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) Model() *Model {
	return q.model
}

// members resolves the query to raw set members. When countOnly is set and
// no negated terms exist, only the count is computed.
func (q *Query) members(ctx context.Context, countOnly bool) ([]string, int64, error) {
	if q.err != nil {
		return nil, 0, q.err
	}
	db, m := q.db, q.model
	db.QueryCount.Add(1)

	var pos, neg []string
	for _, t := range q.terms {
		key := db.indexKey(m, t.field, t.token)
		if t.negated {
			neg = append(neg, key)
		} else {
			pos = append(pos, key)
		}
	}

	var base string
	switch len(pos) {
	case 0:
		base = db.allKeysKey(m)
	case 1:
		base = pos[0]
	default:
		base = tempKey(db.cfg.Prefix, m.namespace)
		// Stores are not required to drop an empty destination.
		defer func() {
			if err := db.store.Exec(context.WithoutCancel(ctx), []Cmd{Del(base)}); err != nil {
				db.logf("rom: QUERY %s: cannot delete %s: %v", m.namespace, base, err)
			}
		}()
		db.ReadCount.Add(1)
		n, err := db.store.SInterStore(ctx, base, pos...)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return nil, 0, nil
		}
		if countOnly && len(neg) == 0 {
			return nil, n, nil
		}
	}

	db.ReadCount.Add(1)
	if len(neg) > 0 {
		members, err := db.store.SDiff(ctx, append([]string{base}, neg...)...)
		return members, int64(len(members)), err
	}
	if countOnly {
		n, err := db.store.SCard(ctx, base)
		return nil, n, err
	}
	members, err := db.store.SMembers(ctx, base)
	return members, int64(len(members)), err
}

// Count returns the number of matching records.
func (q *Query) Count(ctx context.Context) (int64, error) {
	_, n, err := q.members(ctx, true)
	return n, err
}

// PKs returns the primary keys of matching records.
func (q *Query) PKs(ctx context.Context) ([]int64, error) {
	members, _, err := q.members(ctx, false)
	if err != nil {
		return nil, err
	}
	return parsePKs(members)
}

// All loads every matching record. Index entries pointing at records that no
// longer exist are skipped.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	pks, err := q.PKs(ctx)
	if err != nil || len(pks) == 0 {
		return nil, err
	}
	recs, err := q.db.GetMany(ctx, q.model, pks)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if rec != nil {
			out = append(out, rec)
		}
	}
	if q.db.verbose {
		q.db.logf("rom: QUERY %s %v => %d of %d", q.model.namespace, q.terms, len(out), len(pks))
	}
	return out, nil
}

// First returns the matching record with the lowest primary key, or
// ErrNotFound.
func (q *Query) First(ctx context.Context) (*Record, error) {
	pks, err := q.PKs(ctx)
	if err != nil {
		return nil, err
	}
	for _, pk := range pks {
		recs, err := q.db.GetMany(ctx, q.model, []int64{pk})
		if err != nil {
			return nil, err
		}
		if recs[0] != nil {
			return recs[0], nil
		}
	}
	return nil, ErrNotFound
}

// Exists reports whether any record matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

func (t term) String() string {
	if t.negated {
		return t.field.name + "!=" + t.token
	}
	return t.field.name + "==" + t.token
}
