package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDraftStore keeps unsent prompt drafts with a TTL.
type RedisDraftStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisDraftStore(addr string) *RedisDraftStore {
	return &RedisDraftStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Prefix: "outfit:draft:",
		TTL:    7 * 24 * time.Hour,
	}
}

func (s *RedisDraftStore) LoadDraft(ctx context.Context, key string) (string, error) {
	text, err := s.Client.Get(ctx, s.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return text, err
}

func (s *RedisDraftStore) SaveDraft(ctx context.Context, key, text string) error {
	return s.Client.Set(ctx, s.Prefix+key, text, s.TTL).Err()
}

func (s *RedisDraftStore) DeleteDraft(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}
