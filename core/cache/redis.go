package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"syncup-api/core/config"
	"syncup-api/core/constants"
	"syncup-api/core/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the Redis surface the modules depend on.
type Cache interface {
	AddToTokenBlacklist(ctx context.Context, token string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func())

	TouchPresence(ctx context.Context, eventKey, viewerID string) error
	RemovePresence(ctx context.Context, eventKey, viewerID string) error
	CountPresence(ctx context.Context, eventKey string) (int64, error)

	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Tokens are hashed so raw JWTs never land in Redis keys.
func BlacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return constants.RedisKeyTokenBlacklist + hex.EncodeToString(sum[:])
}

func PresenceKey(eventKey string) string {
	return constants.RedisKeyPresence + eventKey
}

func EventChannel(eventKey string) string {
	return constants.RedisChannelEvent + eventKey
}

func (c *RedisCache) AddToTokenBlacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, BlacklistKey(token), "1", ttl).Err()
}

func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, BlacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

// Subscribe forwards messages on channel until ctx is done or the returned cancel func is called.
// The returned channel is closed once forwarding stops.
func (c *RedisCache) Subscribe(ctx context.Context, channel string) (<-chan []byte, func()) {
	pubsub := c.client.Subscribe(ctx, channel)
	out := make(chan []byte, 16)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				logger.Warn("RedisCache:Subscribe:CloseFailed", "channel", channel, "error", err)
			}
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel
}

// Presence is a sorted set of viewer ids scored by last heartbeat (unix seconds).
func (c *RedisCache) TouchPresence(ctx context.Context, eventKey, viewerID string) error {
	key := PresenceKey(eventKey)
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: viewerID})
	pipe.Expire(ctx, key, 2*constants.PresenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) RemovePresence(ctx context.Context, eventKey, viewerID string) error {
	return c.client.ZRem(ctx, PresenceKey(eventKey), viewerID).Err()
}

func (c *RedisCache) CountPresence(ctx context.Context, eventKey string) (int64, error) {
	key := PresenceKey(eventKey)
	cutoff := strconv.FormatInt(time.Now().Add(-constants.PresenceTTL).Unix(), 10)
	if err := c.client.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff).Err(); err != nil {
		return 0, err
	}
	return c.client.ZCount(ctx, key, cutoff, "+inf").Result()
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// IncrementWindow counts a hit in the fixed window stored at key.
func (c *RedisCache) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = time.Minute.Milliseconds()
	}
	res, err := fixedWindowScript.Run(ctx, c.client, []string{key}, ms).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate window %s: %w", key, err)
	}
	return res, nil
}
