package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"IchimokuScanner/internal/model"
)

const redisPrefix = "ichimoku:history:"

// RedisStore keeps reports as JSON strings and their order in a sorted set.
type RedisStore struct {
	rdb        *redis.Client
	maxReports int
}

func NewRedisStore(rdb *redis.Client, maxReports int) *RedisStore {
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	return &RedisStore{rdb: rdb, maxReports: maxReports}
}

func reportKey(id string) string { return redisPrefix + "report:" + id }

func (s *RedisStore) indexKey() string { return redisPrefix + "index" }

func (s *RedisStore) Save(ctx context.Context, r *model.ScanReport) (string, error) {
	base := NewID(r.ScanTime)
	id := base
	for n := 1; ; n++ {
		// reserve the id so concurrent saves in the same second cannot collide
		ok, err := s.rdb.SetNX(ctx, reportKey(id), "{}", time.Minute).Result()
		if err != nil {
			return "", fmt.Errorf("reserve id: %w", err)
		}
		if ok {
			break
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
	stored := *r
	stored.ID = id
	payload, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	seq, err := s.rdb.Incr(ctx, redisPrefix+"seq").Result()
	if err != nil {
		return "", fmt.Errorf("next seq: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, reportKey(id), payload, 0)
	pipe.ZAdd(ctx, s.indexKey(), &redis.Z{Score: float64(seq), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	r.ID = id
	return id, s.prune(ctx)
}

// prune drops every report older than the newest maxReports.
func (s *RedisStore) prune(ctx context.Context) error {
	stale, err := s.rdb.ZRange(ctx, s.indexKey(), 0, int64(-s.maxReports-1)).Result()
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	keys := make([]string, len(stale))
	members := make([]interface{}, len(stale))
	for i, id := range stale {
		keys[i] = reportKey(id)
		members[i] = id
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.ScanReport, error) {
	data, err := s.rdb.Get(ctx, reportKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	var r model.ScanReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	if r.ID == "" {
		// reserved but not yet written
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *RedisStore) List(ctx context.Context) ([]model.HistorySummary, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := []model.HistorySummary{}
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, r.Summary())
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
