package rom

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"
)

var (
	boltStrings = []byte("s")
	boltHashes  = []byte("h")
	boltSets    = []byte("m")
	boltRoots   = [][]byte{boltStrings, boltHashes, boltSets}
)

// BoltStore is a Store kept in a Bolt file. Strings live in one bucket;
// every hash and every set is a nested bucket named by its key. Exec and
// Replace each run in a single Bolt update transaction, so both are atomic.
type BoltStore struct {
	bdb *bbolt.DB
}

type BoltOptions struct {
	IsTesting bool
	MmapSize  int
}

func OpenBoltStore(path string, opt BoltOptions) (*BoltStore, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("boltstore: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		for _, name := range boltRoots {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("boltstore: %w", err)
	}
	return &BoltStore{bdb: bdb}, nil
}

func (s *BoltStore) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx *bbolt.Tx
}

func (tx boltTx) root(name []byte) *bbolt.Bucket {
	return nonNil(tx.btx.Bucket(name))
}

// check fails if key exists with a kind other than want.
func (tx boltTx) check(key []byte, want []byte) error {
	for _, name := range boltRoots {
		if bytes.Equal(name, want) {
			continue
		}
		root := tx.root(name)
		if bytes.Equal(name, boltStrings) {
			if root.Get(key) != nil {
				return fmt.Errorf("%s: %w", key, errWrongType)
			}
		} else if root.Bucket(key) != nil {
			return fmt.Errorf("%s: %w", key, errWrongType)
		}
	}
	return nil
}

func (tx boltTx) nested(root []byte, key string) (*bbolt.Bucket, error) {
	k := unsafeBytesFromString(key)
	if err := tx.check(k, root); err != nil {
		return nil, err
	}
	return tx.root(root).Bucket(k), nil
}

func (tx boltTx) members(key string) ([]string, error) {
	b, err := tx.nested(boltSets, key)
	if b == nil || err != nil {
		return nil, err
	}
	var out []string
	err = b.ForEach(func(k, _ []byte) error {
		out = append(out, string(k))
		return nil
	})
	return out, err
}

func (tx boltTx) isMember(key, member string) (bool, error) {
	b, err := tx.nested(boltSets, key)
	if b == nil || err != nil {
		return false, err
	}
	return b.Get(unsafeBytesFromString(member)) != nil, nil
}

func (tx boltTx) hgetall(key string) (map[string]string, error) {
	b, err := tx.nested(boltHashes, key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if b == nil {
		return out, nil
	}
	err = b.ForEach(func(k, v []byte) error {
		out[string(k)] = string(v)
		return nil
	})
	return out, err
}

func (tx boltTx) inter(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out, err := tx.members(keys[0])
	if err != nil {
		return nil, err
	}
	for _, key := range keys[1:] {
		kept := out[:0]
		for _, m := range out {
			ok, err := tx.isMember(key, m)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, m)
			}
		}
		out = kept
	}
	return out, nil
}

func (tx boltTx) del(key []byte) error {
	if err := tx.root(boltStrings).Delete(key); err != nil {
		return err
	}
	for _, name := range [][]byte{boltHashes, boltSets} {
		err := tx.root(name).DeleteBucket(key)
		if err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
	}
	return nil
}

func (tx boltTx) apply(c Cmd) error {
	key := []byte(c.Key)
	switch c.Op {
	case OpSet:
		if err := tx.del(key); err != nil {
			return err
		}
		return tx.root(boltStrings).Put(key, []byte(c.Arg))
	case OpDel:
		return tx.del(key)
	case OpHSet, OpSAdd:
		rootName := boltHashes
		value := []byte(c.Value)
		if c.Op == OpSAdd {
			rootName = boltSets
			value = []byte{}
		}
		if err := tx.check(key, rootName); err != nil {
			return err
		}
		b, err := tx.root(rootName).CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.Arg), value)
	case OpHDel, OpSRem:
		rootName := boltHashes
		if c.Op == OpSRem {
			rootName = boltSets
		}
		if err := tx.check(key, rootName); err != nil {
			return err
		}
		root := tx.root(rootName)
		b := root.Bucket(key)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(c.Arg)); err != nil {
			return err
		}
		if k, _ := b.Cursor().First(); k == nil {
			return root.DeleteBucket(key)
		}
		return nil
	default:
		return fmt.Errorf("boltstore: unsupported command %v", c.Op)
	}
}

func (s *BoltStore) view(f func(tx boltTx) error) error {
	return s.bdb.View(func(btx *bbolt.Tx) error {
		return f(boltTx{btx})
	})
}

func (s *BoltStore) update(f func(tx boltTx) error) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return f(boltTx{btx})
	})
}

func (s *BoltStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.view(func(tx boltTx) error {
		k := unsafeBytesFromString(key)
		if err := tx.check(k, boltStrings); err != nil {
			return err
		}
		v := tx.root(boltStrings).Get(k)
		if v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	return
}

func (s *BoltStore) Incr(ctx context.Context, key string) (n int64, err error) {
	err = s.update(func(tx boltTx) error {
		k := []byte(key)
		if err := tx.check(k, boltStrings); err != nil {
			return err
		}
		root := tx.root(boltStrings)
		if v := root.Get(k); v != nil {
			var err error
			n, err = strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("%s: value is not an integer", key)
			}
		}
		n++
		return root.Put(k, []byte(strconv.FormatInt(n, 10)))
	})
	return
}

func (s *BoltStore) HGetAll(ctx context.Context, key string) (h map[string]string, err error) {
	err = s.view(func(tx boltTx) error {
		h, err = tx.hgetall(key)
		return err
	})
	return
}

func (s *BoltStore) HGetAllBatch(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	err := s.view(func(tx boltTx) error {
		for i, key := range keys {
			h, err := tx.hgetall(key)
			if err != nil {
				return err
			}
			out[i] = h
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) SMembers(ctx context.Context, key string) (out []string, err error) {
	err = s.view(func(tx boltTx) error {
		out, err = tx.members(key)
		return err
	})
	return
}

func (s *BoltStore) SCard(ctx context.Context, key string) (n int64, err error) {
	err = s.view(func(tx boltTx) error {
		b, err := tx.nested(boltSets, key)
		if b != nil {
			n = int64(b.Stats().KeyN)
		}
		return err
	})
	return
}

func (s *BoltStore) SIsMember(ctx context.Context, key, member string) (ok bool, err error) {
	err = s.view(func(tx boltTx) error {
		ok, err = tx.isMember(key, member)
		return err
	})
	return
}

func (s *BoltStore) SInter(ctx context.Context, keys ...string) (out []string, err error) {
	err = s.view(func(tx boltTx) error {
		out, err = tx.inter(keys)
		return err
	})
	return
}

func (s *BoltStore) SInterStore(ctx context.Context, dest string, keys ...string) (n int64, err error) {
	err = s.update(func(tx boltTx) error {
		members, err := tx.inter(keys)
		if err != nil {
			return err
		}
		members = slices.Clone(members)
		if err := tx.del([]byte(dest)); err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.apply(SAdd(dest, m)); err != nil {
				return err
			}
		}
		n = int64(len(members))
		return nil
	})
	return
}

func (s *BoltStore) SDiff(ctx context.Context, keys ...string) (out []string, err error) {
	if len(keys) == 0 {
		return nil, nil
	}
	err = s.view(func(tx boltTx) error {
		base, err := tx.members(keys[0])
		if err != nil {
			return err
		}
	outer:
		for _, m := range base {
			for _, key := range keys[1:] {
				ok, err := tx.isMember(key, m)
				if err != nil {
					return err
				}
				if ok {
					continue outer
				}
			}
			out = append(out, m)
		}
		return nil
	})
	return
}

func (s *BoltStore) Scan(ctx context.Context, prefix string) (out []string, err error) {
	err = s.view(func(tx boltTx) error {
		out = tx.scan([]byte(prefix))
		return nil
	})
	slices.Sort(out)
	return
}

func (tx boltTx) scan(prefix []byte) []string {
	var out []string
	for _, name := range boltRoots {
		c := tx.root(name).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			out = append(out, string(k))
		}
	}
	return out
}

func (s *BoltStore) Exec(ctx context.Context, cmds []Cmd) error {
	return s.update(func(tx boltTx) error {
		for _, c := range cmds {
			if err := tx.apply(c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Replace(ctx context.Context, prefix string, cmds []Cmd) error {
	return s.update(func(tx boltTx) error {
		for _, key := range tx.scan([]byte(prefix)) {
			if err := tx.del([]byte(key)); err != nil {
				return err
			}
		}
		for _, c := range cmds {
			if err := tx.apply(c); err != nil {
				return err
			}
		}
		return nil
	})
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
