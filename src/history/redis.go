package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
)

const backendRedis = "redis"

// RedisStore keeps conversations in Redis. Keys are namespaced as
// "{prefix}:conv:{id}" (metadata hash), "{prefix}:conv:{id}:messages" (JSON
// list) and "{prefix}:conversations" (sorted set scored by update time).
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures the Redis store
type RedisStoreConfig struct {
	Prefix string // key prefix, default "tyrant"
}

func NewRedisStore(client *redis.Client, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "tyrant"
	}
	log.Printf("[History] Using redis store with prefix %s", cfg.Prefix)
	return &RedisStore{client: client, prefix: cfg.Prefix}
}

func (r *RedisStore) metaKey(id string) string {
	return fmt.Sprintf("%s:conv:%s", r.prefix, id)
}

func (r *RedisStore) listKey(id string) string {
	return fmt.Sprintf("%s:conv:%s:messages", r.prefix, id)
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":conversations"
}

func (r *RedisStore) Create(ctx context.Context, personality string) (Conversation, error) {
	now := stamp()
	c := Conversation{
		ID:          newID(),
		Personality: personality,
		CreatedAt:   fromStamp(now),
		UpdatedAt:   fromStamp(now),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.metaKey(c.ID),
			"personality", personality,
			"feedback", "",
			"created_at", now,
			"updated_at", now)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now), Member: c.ID})
		return nil
	})
	if err != nil {
		return Conversation{}, tyerrors.NewStoreError("create", backendRedis, err)
	}
	return c, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Conversation, error) {
	fields, err := r.client.HGetAll(ctx, r.metaKey(id)).Result()
	if err != nil {
		return Conversation{}, tyerrors.NewStoreError("get", backendRedis, err)
	}
	if len(fields) == 0 {
		return Conversation{}, notFound("get", backendRedis, id)
	}

	count, err := r.client.LLen(ctx, r.listKey(id)).Result()
	if err != nil {
		return Conversation{}, tyerrors.NewStoreError("get", backendRedis, err)
	}

	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	updated, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return Conversation{
		ID:           id,
		Personality:  fields["personality"],
		Feedback:     fields["feedback"],
		MessageCount: int(count),
		CreatedAt:    fromStamp(created),
		UpdatedAt:    fromStamp(updated),
	}, nil
}

func (r *RedisStore) exists(ctx context.Context, op, id string) error {
	n, err := r.client.Exists(ctx, r.metaKey(id)).Result()
	if err != nil {
		return tyerrors.NewStoreError(op, backendRedis, err)
	}
	if n == 0 {
		return notFound(op, backendRedis, id)
	}
	return nil
}

// touch records an update inside a transaction pipeline
func (r *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, id string) {
	now := stamp()
	pipe.HSet(ctx, r.metaKey(id), "updated_at", now)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now), Member: id})
}

func (r *RedisStore) Append(ctx context.Context, id string, msgs ...message.Message) error {
	if err := r.exists(ctx, "append", id); err != nil {
		return err
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return tyerrors.NewStoreError("append", backendRedis, err)
		}
		values = append(values, string(data))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.RPush(ctx, r.listKey(id), values...)
		}
		r.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return tyerrors.NewStoreError("append", backendRedis, err)
	}
	return nil
}

func (r *RedisStore) Messages(ctx context.Context, id string, limit int) ([]message.Message, error) {
	if err := r.exists(ctx, "messages", id); err != nil {
		return nil, err
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := r.client.LRange(ctx, r.listKey(id), start, -1).Result()
	if err != nil {
		return nil, tyerrors.NewStoreError("messages", backendRedis, err)
	}

	msgs := make([]message.Message, 0, len(items))
	for _, item := range items {
		var m message.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, tyerrors.NewStoreError("messages", backendRedis, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RedisStore) SetFeedback(ctx context.Context, id, feedback string) error {
	if err := r.exists(ctx, "feedback", id); err != nil {
		return err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.metaKey(id), "feedback", feedback)
		r.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return tyerrors.NewStoreError("feedback", backendRedis, err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, tyerrors.NewStoreError("list", backendRedis, err)
	}

	convs := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if tyerrors.IsNotFound(err) {
			// deleted between the index read and the hash read
			continue
		}
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.metaKey(id), r.listKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return tyerrors.NewStoreError("delete", backendRedis, err)
	}
	if del.Val() == 0 {
		return notFound("delete", backendRedis, id)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
