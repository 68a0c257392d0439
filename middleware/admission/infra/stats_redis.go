package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore incrementa, no Redis, um campo de hash por decisão.
//
// Chaves: <prefix>:total, <prefix>:minute:<yyyymmddhhmm>, <prefix>:route e, com
// trackKeys, <prefix>:key:<cliente>.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "admission:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := ev.Decision.String()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	if s.bucket == "minute" {
		s.incrExpiring(ctx, pipe, s.prefix+":minute:"+at.UTC().Format("200601021504"), field)
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	// chave vazia é um cliente válido, mas não vale um hash próprio
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		s.incrExpiring(ctx, pipe, s.prefix+":key:"+k, field)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record admission stats: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }

// Totals lê de volta os contadores cumulativos.
func (s *RedisStatsStore) Totals(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return Counters{}, fmt.Errorf("read admission stats: %w", err)
	}

	var c Counters
	for field, raw := range vals {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Counters{}, fmt.Errorf("parse %s counter %q: %w", field, raw, err)
		}
		switch field {
		case domain.Allow.String():
			c.Allowed = n
		case domain.RateLimited.String():
			c.RateLimited = n
		case domain.Forbidden.String():
			c.Forbidden = n
		}
	}
	return c, nil
}
