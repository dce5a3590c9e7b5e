package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/portcullis"
)

// Compile-time interface check.
var _ portcullis.Cache = (*Redis)(nil)

// Invalidation payloads. Actor payloads carry the actor id after the
// prefix, so no actor id can be mistaken for a global bump.
const (
	allActorsPayload = "all"
	actorPayload     = "actor:"
)

// Redis is a shared decision cache. Keys embed a global version and a
// per-actor generation, so invalidation is a single INCR and stale entries
// simply age out through their TTL. Every invalidation is also published
// so peers holding a Memory cache can drop their entries.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// RedisOption configures the redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the entry time-to-live.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithPrefix sets the key prefix. Defaults to "portcullis".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisLogger sets the logger used for redis failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis creates a redis-backed cache.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    time.Minute,
		prefix: "portcullis",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) versionKey() string            { return r.prefix + ":version" }
func (r *Redis) generationKey(a string) string { return r.prefix + ":gen:" + portcullis.ActorKey(a) }
func (r *Redis) channel() string               { return r.prefix + ":invalidate" }

// Version returns the current global version. A missing key reads as zero.
func (r *Redis) Version(ctx context.Context) (int64, error) {
	ver, err := r.client.Get(ctx, r.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// buildKey composes the entry key from the current version, the actor's
// generation, the quoted actor id and the quoted request.
func (r *Redis) buildKey(ctx context.Context, actorID string, req *portcullis.Request) (string, error) {
	vals, err := r.client.MGet(ctx, r.versionKey(), r.generationKey(actorID)).Result()
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		r.prefix, "d",
		counter(vals[0]),
		counter(vals[1]),
		portcullis.ActorKey(actorID) + portcullis.CacheKey(req),
	}, ":"), nil
}

func counter(v any) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return "0"
}

// Get returns a cached result. Redis failures read as a miss.
func (r *Redis) Get(ctx context.Context, actorID string, req *portcullis.Request) (*portcullis.Result, bool) {
	key, err := r.buildKey(ctx, actorID, req)
	if err != nil {
		r.warn("build key", err)
		return nil, false
	}
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.warn("get", err)
		}
		return nil, false
	}
	var res portcullis.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		r.warn("decode", err)
		return nil, false
	}
	return &res, true
}

// Set stores result under the current version and generation.
func (r *Redis) Set(ctx context.Context, actorID string, req *portcullis.Request, result *portcullis.Result) {
	key, err := r.buildKey(ctx, actorID, req)
	if err != nil {
		r.warn("build key", err)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		r.warn("encode", err)
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.warn("set", err)
	}
}

// InvalidateAll bumps the global version.
func (r *Redis) InvalidateAll(ctx context.Context) {
	ver, err := r.client.Incr(ctx, r.versionKey()).Result()
	if err != nil {
		r.warn("bump version", err)
		return
	}
	r.publish(ctx, allActorsPayload)
	r.logger.Debug("decision cache version bumped", slog.Int64("version", ver))
}

// InvalidateActor bumps the actor's generation.
func (r *Redis) InvalidateActor(ctx context.Context, actorID string) {
	if err := r.client.Incr(ctx, r.generationKey(actorID)).Err(); err != nil {
		r.warn("bump generation", err)
		return
	}
	r.publish(ctx, actorPayload+actorID)
}

func (r *Redis) publish(ctx context.Context, payload string) {
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		r.warn("publish", err)
	}
}

// Subscribe forwards invalidations published by any process to local.
// It returns once the subscription is confirmed and stops when ctx ends.
func (r *Redis) Subscribe(ctx context.Context, local portcullis.Cache) error {
	pubsub := r.client.Subscribe(ctx, r.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				switch {
				case msg.Payload == allActorsPayload:
					local.InvalidateAll(ctx)
				case strings.HasPrefix(msg.Payload, actorPayload):
					local.InvalidateActor(ctx, strings.TrimPrefix(msg.Payload, actorPayload))
				}
			}
		}
	}()
	return nil
}

func (r *Redis) warn(op string, err error) {
	r.logger.Warn("decision cache redis error",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
