package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"storefront/kit/observability"
)

const redisMaxTxAttempts = 8

// RedisClient stores each document as a JSON string and keeps one set per
// indexed field value. Mutations run under WATCH so PatchIf is a true
// compare-and-swap.
type RedisClient struct {
	rdb     *redis.Client
	prefix  string
	indexed map[string]map[string]bool
	logger  *observability.Logger
}

type RedisOption func(*RedisClient)

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisClient) { c.prefix = prefix }
}

func WithRedisIndex(collection string, fields ...string) RedisOption {
	return func(c *RedisClient) {
		if c.indexed[collection] == nil {
			c.indexed[collection] = make(map[string]bool)
		}
		for _, f := range fields {
			c.indexed[collection][f] = true
		}
	}
}

func WithRedisLogger(logger *observability.Logger) RedisOption {
	return func(c *RedisClient) { c.logger = logger }
}

func NewRedisClient(rdb *redis.Client, opts ...RedisOption) *RedisClient {
	c := &RedisClient{rdb: rdb, prefix: "storefront:", indexed: make(map[string]map[string]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisClient, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrInvalid, fmt.Errorf("parse redis url: %w", err))
	}
	rdb := redis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Join(ErrUnavailable, fmt.Errorf("ping redis: %w", err))
	}
	return NewRedisClient(rdb, opts...), nil
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

func (c *RedisClient) docKey(collection, id string) string {
	return c.prefix + "doc:" + collection + ":" + id
}

func (c *RedisClient) indexKey(collection, field string, value any) string {
	return c.prefix + "idx:" + collection + ":" + field + ":" + valueKey(value)
}

func (c *RedisClient) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := c.rdb.Get(ctx, c.docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		c.logError("Get", collection, id, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	return decodeDocument(raw)
}

func (c *RedisClient) Put(ctx context.Context, collection, id string, doc Document) error {
	n, err := normalize(doc)
	if err != nil {
		return err
	}
	return c.mutate(ctx, collection, id, func(cur Document, exists bool) (Document, error) {
		return n, nil
	})
}

func (c *RedisClient) Patch(ctx context.Context, collection, id string, partial Document) error {
	n, err := normalize(partial)
	if err != nil {
		return err
	}
	return c.mutate(ctx, collection, id, func(cur Document, exists bool) (Document, error) {
		if !exists {
			return nil, ErrNotFound
		}
		return merge(cur, n), nil
	})
}

func (c *RedisClient) PatchIf(ctx context.Context, collection, id string, cond Condition, partial Document) error {
	if err := validateField(cond.Field); err != nil {
		return err
	}
	n, err := normalize(partial)
	if err != nil {
		return err
	}
	return c.mutate(ctx, collection, id, func(cur Document, exists bool) (Document, error) {
		if !exists {
			return nil, ErrNotFound
		}
		if !matches(cur, cond.Field, cond.Value) {
			return nil, ErrConflict
		}
		return merge(cur, n), nil
	})
}

// mutate reads the current document under WATCH, lets fn compute the next
// version and commits it together with the index updates.
func (c *RedisClient) mutate(ctx context.Context, collection, id string, fn func(cur Document, exists bool) (Document, error)) error {
	key := c.docKey(collection, id)
	for attempt := 0; attempt < redisMaxTxAttempts; attempt++ {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			var cur Document
			exists := true
			raw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				exists = false
			case err != nil:
				return errors.Join(ErrUnavailable, err)
			default:
				if cur, err = decodeDocument(raw); err != nil {
					return err
				}
			}

			next, err := fn(cur, exists)
			if err != nil {
				return err
			}
			b, err := json.Marshal(next)
			if err != nil {
				return errors.Join(ErrInternal, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, b, 0)
				for field := range c.indexed[collection] {
					if exists {
						if v, ok := cur[field]; ok {
							pipe.SRem(ctx, c.indexKey(collection, field, v), id)
						}
					}
					if v, ok := next[field]; ok {
						pipe.SAdd(ctx, c.indexKey(collection, field, v), id)
					}
				}
				return nil
			})
			if err != nil && !errors.Is(err, redis.TxFailedErr) {
				return errors.Join(ErrUnavailable, err)
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && IsUnavailable(err) {
			c.logError("mutate", collection, id, err)
		}
		return err
	}
	return errors.Join(ErrConflict, fmt.Errorf("redis: %d optimistic attempts exhausted for %s", redisMaxTxAttempts, key))
}

func (c *RedisClient) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := validateOp(op); err != nil {
		return nil, err
	}
	if err := validateField(field); err != nil {
		return nil, err
	}

	var keys []string
	if c.indexed[collection][field] {
		ids, err := c.rdb.SMembers(ctx, c.indexKey(collection, field, value)).Result()
		if err != nil {
			c.logError("Query", collection, field, err)
			return nil, errors.Join(ErrUnavailable, err)
		}
		sort.Strings(ids)
		for _, id := range ids {
			keys = append(keys, c.docKey(collection, id))
		}
	} else {
		iter := c.rdb.Scan(ctx, 0, c.docKey(collection, "*"), 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logError("Query", collection, field, err)
			return nil, errors.Join(ErrUnavailable, err)
		}
		sort.Strings(keys)
	}
	if len(keys) == 0 {
		return []Document{}, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logError("Query", collection, field, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	out := make([]Document, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decodeDocument([]byte(s))
		if err != nil {
			return nil, err
		}
		// index sets can briefly lag a concurrent write
		if !matches(doc, field, value) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (c *RedisClient) logError(method, collection, ref string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("db error", "layer", "client", "component", "db", "client", "redis", "method", method, "collection", collection, "ref", ref, "error", err.Error())
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return doc, nil
}
