package repository

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
)

const keyPrefix = "keywords:"

type redisStore struct {
	client *redis.Client
}

func Provide(client *redis.Client) keyworddomain.Store {
	return &redisStore{client: client}
}

func Key(category keyworddomain.Category) string {
	return keyPrefix + string(category)
}

func (r *redisStore) Members(ctx context.Context, category keyworddomain.Category) ([]string, error) {
	members, err := r.client.SMembers(ctx, Key(category)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", Key(category), err)
	}
	return members, nil
}

// Replace swaps the set atomically so readers never observe a half-written set.
func (r *redisStore) Replace(ctx context.Context, category keyworddomain.Category, words []string) error {
	key := Key(category)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(words) > 0 {
			members := make([]any, 0, len(words))
			for _, w := range words {
				members = append(members, w)
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}
