package rom

import (
	"context"
	"strconv"
	"sync/atomic"
)

// DB maps records of any number of models onto a Store. It holds no state of
// its own besides configuration and counters: the store is the only source
// of truth, and a DB is safe for concurrent use if the store is.
type DB struct {
	store   Store
	cfg     *Config
	logf    func(format string, args ...any)
	verbose bool

	ReadCount    atomic.Uint64
	WriteCount   atomic.Uint64
	QueryCount   atomic.Uint64
	ReplaceCount atomic.Uint64
	ErrorCount   atomic.Uint64
}

type Options struct {
	Config  *Config
	Logf    func(format string, args ...any)
	Verbose bool
}

func Open(store Store, opt Options) *DB {
	if store == nil {
		panic("rom: nil store")
	}
	cfg := opt.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logf := opt.Logf
	if logf == nil {
		logf = func(format string, args ...any) {}
	}
	return &DB{
		store:   store,
		cfg:     cfg.withDefaults(),
		logf:    logf,
		verbose: opt.Verbose,
	}
}

func (db *DB) Store() Store {
	return db.store
}

func (db *DB) Config() *Config {
	c := *db.cfg
	return &c
}

func (db *DB) prefix(m *Model) string {
	return NamespacePrefix(db.cfg.Prefix, m.namespace)
}

func (db *DB) recordKey(m *Model, pk int64) string {
	return RecordKey(db.cfg.Prefix, m.namespace, pk)
}

func (db *DB) allKeysKey(m *Model) string {
	return AllKeysSetKey(db.cfg.Prefix, m.namespace)
}

func (db *DB) indexKey(m *Model, f *Field, token string) string {
	return IndexSetKey(db.cfg.Prefix, m.namespace, f.name, token)
}

func (db *DB) nextKey(m *Model) string {
	return NextIDKey(db.cfg.Prefix, m.namespace)
}

func (db *DB) exec(ctx context.Context, cmds []Cmd) error {
	if len(cmds) == 0 {
		return nil
	}
	db.WriteCount.Add(1)
	err := db.store.Exec(ctx, cmds)
	if err != nil {
		db.ErrorCount.Add(1)
	}
	return err
}

// PeekNextID returns the primary key the next insert into m will get, without
// allocating it.
func (db *DB) PeekNextID(ctx context.Context, m *Model) (int64, error) {
	if err := m.Err(); err != nil {
		return 0, err
	}
	return db.peekNextID(ctx, m.namespace)
}

func (db *DB) peekNextID(ctx context.Context, ns string) (int64, error) {
	db.ReadCount.Add(1)
	s, ok, err := db.store.Get(ctx, NextIDKey(db.cfg.Prefix, ns))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dataErrf([]byte(s), 0, err, "%s: invalid id counter", ns)
	}
	return n + 1, nil
}

// NextID allocates and returns a primary key for m.
func (db *DB) NextID(ctx context.Context, m *Model) (int64, error) {
	if err := m.Err(); err != nil {
		return 0, err
	}
	db.WriteCount.Add(1)
	return db.store.Incr(ctx, db.nextKey(m))
}
