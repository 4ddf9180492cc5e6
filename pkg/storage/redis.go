package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOptions configures NewRedisStore. URL wins over Addr when both are set.
type RedisOptions struct {
	URL      string
	Addr     string
	Password string
	// Prefix namespaces keys, e.g. one prefix per device or profile.
	Prefix string
	// Channel carries change announcements between stores sharing Prefix.
	Channel string
}

// RedisStore shares storage between processes, possibly on different hosts.
// Every write is announced on a pub/sub channel tagged with the writer's
// origin id so that a store can skip its own announcements.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
	origin  string
	log     zerolog.Logger
}

type redisAnnouncement struct {
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

func NewRedisStore(ctx context.Context, opts RedisOptions, log zerolog.Logger) (*RedisStore, error) {
	var opt *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	channel := opts.Channel
	if channel == "" {
		channel = "storefront:storage"
	}
	return &RedisStore{
		client:  client,
		prefix:  opts.Prefix,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log.With().Str("component", "storage.redis").Logger(),
	}, nil
}

func (r *RedisStore) redisKey(key string) string {
	return r.prefix + key
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	r.announce(ctx, Change{Key: key})
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	r.announce(ctx, Change{Key: key, Removed: true})
	return nil
}

// announce is best effort: the write already happened, a lost announcement
// only delays other stores noticing it.
func (r *RedisStore) announce(ctx context.Context, change Change) {
	msg, err := json.Marshal(redisAnnouncement{Origin: r.origin, Key: r.prefix + change.Key, Removed: change.Removed})
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", change.Key).Msg("Failed to announce storage change")
	}
}

func (r *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var a redisAnnouncement
				if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
					r.log.Debug().Err(err).Msg("Ignoring malformed storage announcement")
					continue
				}
				key, ok := strings.CutPrefix(a.Key, r.prefix)
				if a.Origin == r.origin || !ok || key == "" {
					continue
				}
				select {
				case out <- Change{Key: key, Removed: a.Removed}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
