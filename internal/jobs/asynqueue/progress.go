package asynqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/model"
	redis "github.com/redis/go-redis/v9"
)

func progressKey(id string) string {
	return "shortlinks:progress:" + id
}

// RedisProgressStore прогресс задач в Redis, общий для сервера и воркеров
type RedisProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ jobs.ProgressStore = (*RedisProgressStore)(nil)

// NewRedisClient клиент go-redis с теми же параметрами, что и у очереди
func NewRedisClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewRedisProgressStore ttl продлевается при каждой записи
func NewRedisProgressStore(client *redis.Client, ttl time.Duration) *RedisProgressStore {
	return &RedisProgressStore{client: client, ttl: ttl}
}

func (s *RedisProgressStore) Set(ctx context.Context, id string, p model.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, progressKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи прогресса: %w", err)
	}
	return nil
}

func (s *RedisProgressStore) Get(ctx context.Context, id string) (model.Progress, bool, error) {
	var p model.Progress
	data, err := s.client.Get(ctx, progressKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("ошибка чтения прогресса: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, false, fmt.Errorf("ошибка разбора прогресса: %w", err)
	}
	return p, true, nil
}

func (s *RedisProgressStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, progressKey(id)).Err()
}

// Ping проверка доступности Redis
func (s *RedisProgressStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisProgressStore) Close() error {
	return s.client.Close()
}
