package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed DocumentStore. Each document is a string key
// "{prefix}:{collection}:{id}"; a sorted set "{prefix}:{collection}" with
// zero scores indexes the ids in lexical order.
type Redis struct {
	name   string
	client redis.Cmdable
	prefix string
}

// NewRedis creates a Redis document store.
func NewRedis(name string, client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "reportal"
	}
	return &Redis{name: name, client: client, prefix: prefix}
}

func (s *Redis) Name() string { return s.name }

func (s *Redis) docKey(collection, id string) string {
	return s.prefix + ":" + collection + ":" + id
}

func (s *Redis) indexKey(collection string) string {
	return s.prefix + ":" + collection
}

func (s *Redis) Get(ctx context.Context, collection, id string) ([]byte, error) {
	doc, err := s.client.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *Redis) Put(ctx context.Context, collection, id string, doc []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queuePut(ctx, pipe, collection, id, doc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Insert uses SETNX inside MULTI/EXEC. The index add is idempotent, so it is
// queued whether or not the key was free.
func (s *Redis) Insert(ctx context.Context, collection, id string, doc []byte) error {
	var set *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.SetNX(ctx, s.docKey(collection, id), doc, 0)
		pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: 0, Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis insert %s/%s: %w", collection, id, err)
	}
	if !set.Val() {
		return ErrExists
	}
	return nil
}

func (s *Redis) queuePut(ctx context.Context, pipe redis.Pipeliner, collection, id string, doc []byte) {
	pipe.Set(ctx, s.docKey(collection, id), doc, 0)
	pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: 0, Member: id})
}

func (s *Redis) queueDelete(ctx context.Context, pipe redis.Pipeliner, collection, id string) *redis.IntCmd {
	del := pipe.Del(ctx, s.docKey(collection, id))
	pipe.ZRem(ctx, s.indexKey(collection), id)
	return del
}

func (s *Redis) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = s.queueDelete(ctx, pipe, collection, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s/%s: %w", collection, id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Redis) Query(ctx context.Context, collection string, match Predicate) ([]Entry, error) {
	entries, err := s.rangeEntries(ctx, collection, 0, -1)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Redis) List(ctx context.Context, collection string, offset, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	return s.rangeEntries(ctx, collection, int64(offset), stop)
}

func (s *Redis) rangeEntries(ctx context.Context, collection string, start, stop int64) ([]Entry, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(collection), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis index %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", collection, err)
	}

	out := make([]Entry, 0, len(ids))
	for i, v := range vals {
		doc, ok := v.(string)
		if !ok {
			// Index entry without a document; skip it.
			continue
		}
		out = append(out, Entry{ID: ids[i], Doc: []byte(doc)})
	}
	return out, nil
}

// Commit applies the mutations in a single MULTI/EXEC transaction.
func (s *Redis) Commit(ctx context.Context, mutations []Mutation) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range mutations {
			switch m.Op {
			case OpPut:
				s.queuePut(ctx, pipe, m.Collection, m.ID, m.Doc)
			case OpDelete:
				s.queueDelete(ctx, pipe, m.Collection, m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis batch: %w", err)
	}
	return nil
}

func (s *Redis) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
