package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pscheid92/faredesk/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	backendLabel     = "redis"
	DefaultKeyPrefix = "faredesk:"
)

// Store keeps durable records as plain Redis strings without expiry.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

func NewStore(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	return s.found("get", key, value, err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
	observe("set", err)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.rdb.Del(ctx, s.prefix+key).Err()
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Take uses GETDEL, so two runtimes racing for the same marker see it once.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.rdb.GetDel(ctx, s.prefix+key).Bytes()
	return s.found("take", key, value, err)
}

func (s *Store) found(op, key string, value []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, goredis.Nil) {
		observe(op, nil)
		return nil, false, nil
	}
	observe(op, err)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", op, key, err)
	}
	return value, true, nil
}

func observe(op string, err error) {
	metrics.StoreOpsTotal.WithLabelValues(backendLabel, op, opStatus(err)).Inc()
}
