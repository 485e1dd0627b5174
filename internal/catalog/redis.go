package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "sheetbot:file:"
	redisIndexKey  = "sheetbot:files"
)

// Redis stores records as JSON values with a sorted-set index by upload time.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to the server at url (redis://host:port/db) and checks
// it responds.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, id string) (Record, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, fmt.Errorf("failed to get file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return rec, nil
}

func (r *Redis) Put(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal file: %w", err)
	}

	ok, err := r.client.SetNX(ctx, redisKeyPrefix+rec.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}

	score := float64(rec.UploadedAt.UnixNano())
	if err := r.client.ZAdd(ctx, redisIndexKey, redis.Z{Score: score, Member: rec.ID}).Err(); err != nil {
		return fmt.Errorf("failed to index file: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]Record, error) {
	ids, err := r.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}

	out := make([]Record, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // index entry without a value
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal file: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
