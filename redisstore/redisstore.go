// Package redisstore implements rom.Store on top of a Redis server.
//
// Replace relies on KEYS inside a Lua script, so it only sees keys held by a
// single node. Cluster deployments are not supported.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/andreyvit/rom"
)

type Store struct {
	rdb redis.UniversalClient
}

var _ rom.Store = (*Store)(nil)

func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient {
	return s.rdb
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *Store) HGetAllBatch(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(keys))
	for i, c := range cmds {
		out[i] = c.Val()
	}
	return out, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return nilIfEmpty(s.rdb.SMembers(ctx, key).Result())
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

func (s *Store) SInter(ctx context.Context, keys ...string) ([]string, error) {
	return nilIfEmpty(s.rdb.SInter(ctx, keys...).Result())
}

func (s *Store) SInterStore(ctx context.Context, dest string, keys ...string) (int64, error) {
	n, err := s.rdb.SInterStore(ctx, dest, keys...).Result()
	if err != nil || n > 0 {
		return n, err
	}
	// Redis drops an empty destination itself, but not every server that
	// speaks the protocol does.
	return 0, s.rdb.Del(ctx, dest).Err()
}

func (s *Store) SDiff(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return nilIfEmpty(s.rdb.SDiff(ctx, keys...).Result())
}

func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", 1000).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	// SCAN may return a key more than once.
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *Store) Exec(ctx context.Context, cmds []rom.Cmd) error {
	if len(cmds) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, c := range cmds {
			if err := queue(ctx, p, c); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func queue(ctx context.Context, p redis.Pipeliner, c rom.Cmd) error {
	switch c.Op {
	case rom.OpHSet:
		p.HSet(ctx, c.Key, c.Arg, c.Value)
	case rom.OpHDel:
		p.HDel(ctx, c.Key, c.Arg)
	case rom.OpDel:
		p.Del(ctx, c.Key)
	case rom.OpSAdd:
		p.SAdd(ctx, c.Key, c.Arg)
	case rom.OpSRem:
		p.SRem(ctx, c.Key, c.Arg)
	case rom.OpSet:
		p.Set(ctx, c.Key, c.Arg, 0)
	default:
		return fmt.Errorf("redisstore: unsupported command %v", c.Op)
	}
	return nil
}

// replaceScript deletes every key matching ARGV[1], then applies the
// commands packed into the rest of ARGV four values at a time.
var replaceScript = redis.NewScript(`
for _, key in ipairs(redis.call('KEYS', ARGV[1])) do
	redis.call('DEL', key)
end
for i = 2, #ARGV, 4 do
	local op, key, arg, val = ARGV[i], ARGV[i+1], ARGV[i+2], ARGV[i+3]
	if op == 'h' then
		redis.call('HSET', key, arg, val)
	elseif op == 'H' then
		redis.call('HDEL', key, arg)
	elseif op == 'd' then
		redis.call('DEL', key)
	elseif op == 's' then
		redis.call('SADD', key, arg)
	elseif op == 'S' then
		redis.call('SREM', key, arg)
	elseif op == 'v' then
		redis.call('SET', key, arg)
	else
		return redis.error_reply('unsupported command ' .. op)
	end
end
return #ARGV
`)

func (s *Store) Replace(ctx context.Context, prefix string, cmds []rom.Cmd) error {
	args := make([]any, 0, 1+4*len(cmds))
	args = append(args, escapeGlob(prefix)+"*")
	for _, c := range cmds {
		args = append(args, string([]byte{byte(c.Op)}), c.Key, c.Arg, c.Value)
	}
	err := replaceScript.Run(ctx, s.rdb, nil, args...).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: replace %s: %w", prefix, err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

func nilIfEmpty(a []string, err error) ([]string, error) {
	if len(a) == 0 {
		return nil, err
	}
	return a, err
}
