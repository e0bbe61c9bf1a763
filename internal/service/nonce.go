package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kbunet/talentchain/internal/domain"
)

const noncePrefix = "talentchain:nonce:"

// RedisNonceStore backs NonceStore with Redis so nonces expire on their own
// and survive process restarts.
type RedisNonceStore struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb}
}

func (s *RedisNonceStore) Set(ctx context.Context, address, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, noncePrefix+address, nonce, ttl).Err()
}

func (s *RedisNonceStore) Take(ctx context.Context, address string) (string, error) {
	nonce, err := s.rdb.GetDel(ctx, noncePrefix+address).Result()
	if err == redis.Nil {
		return "", domain.NotFoundError{Resource: "nonce"}
	}
	if err != nil {
		return "", err
	}
	return nonce, nil
}
