package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/runnerr0/tabcycle/internal/history"
)

// RedisStore keeps the history blob and instance reports in Redis. Instance
// reports expire after Options.StaleAfter, so a crashed page drops out of
// the registry on its own.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   Options
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL, prefix string, opts Options) (*RedisStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, prefix, opts), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "tabcycle"
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisStore) historyKey() string {
	return fmt.Sprintf("%s:history:%s", s.prefix, s.opts.HistoryKey)
}

func (s *RedisStore) instanceKey(id string) string {
	return fmt.Sprintf("%s:instance:%s", s.prefix, id)
}

func (s *RedisStore) LoadHistory(ctx context.Context) ([]history.TabRecord, error) {
	raw, err := s.client.Get(ctx, s.historyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return []history.TabRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.historyKey(), err)
	}
	return decodeHistory(raw)
}

func (s *RedisStore) SaveHistory(ctx context.Context, records []history.TabRecord) error {
	raw, err := encodeHistory(records)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.historyKey(), raw, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", s.historyKey(), err)
	}
	return nil
}

// Publish stores rec for instanceID with the staleness window as TTL.
func (s *RedisStore) Publish(ctx context.Context, instanceID string, rec history.TabRecord) error {
	id := strings.TrimSpace(instanceID)
	if id == "" {
		return errors.New("instance id is required")
	}
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.instanceKey(id), raw, s.opts.StaleAfter).Err(); err != nil {
		return fmt.Errorf("publish instance %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Withdraw(ctx context.Context, instanceID string) error {
	n, err := s.client.Del(ctx, s.instanceKey(instanceID)).Result()
	if err != nil {
		return fmt.Errorf("withdraw instance %s: %w", instanceID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Instances lists the unexpired instance reports ordered by id.
func (s *RedisStore) Instances(ctx context.Context) ([]Instance, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.instanceKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan instances: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read instances: %w", err)
	}

	keyPrefix := s.instanceKey("")
	out := make([]Instance, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Expired between SCAN and MGET.
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", keys[i], err)
		}
		out = append(out, Instance{ID: strings.TrimPrefix(keys[i], keyPrefix), Record: rec})
	}
	return out, nil
}

func (s *RedisStore) Live(ctx context.Context) (map[string]*history.TabRecord, error) {
	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}
	return liveMap(instances), nil
}

// PruneStale is a no-op: Redis expires stale reports itself.
func (s *RedisStore) PruneStale(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisStore) GetStats(ctx context.Context) (*Stats, error) {
	records, err := s.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		HistoryEntries: len(records),
		Instances:      len(instances),
		LiveInstances:  len(instances),
	}, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
