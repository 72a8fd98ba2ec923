package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache TTLs. Balance entries stay short so a stale value is bounded to
// one minute even if an invalidation is lost.
const (
	UserCreditsTTL = 60 * time.Second
	SkillDetailTTL = time.Hour
	SkillListTTL   = 5 * time.Minute
	TaxonomyTTL    = 24 * time.Hour
)

// Cache key derivation. The cache only supports exact-key get/set/delete,
// so every writer derives the same keys its invalidation deletes.
func UserCreditsKey(userID string) string   { return fmt.Sprintf("user:%s:credits", userID) }
func SkillKey(skillID string) string        { return fmt.Sprintf("skill:%s", skillID) }
func SkillListKey(filterHash string) string { return fmt.Sprintf("skills:list:%s", filterHash) }

const (
	CategoriesKey   = "categories:all"
	CategoryTreeKey = "categories:tree"
	TagsKey         = "tags:all"
	PopularTagsKey  = "tags:popular"
)

// CacheService wraps Redis with JSON payloads. A nil client disables
// caching entirely; every method degrades to a miss or a no-op so the
// callers stay correct when Redis is down.
type CacheService struct {
	redis *redis.Client
}

func NewCacheService(redisClient *redis.Client) *CacheService {
	return &CacheService{redis: redisClient}
}

// Enabled reports whether a Redis client is attached.
func (s *CacheService) Enabled() bool {
	return s.redis != nil
}

// Get unmarshals the cached value into dest. Returns false on a miss.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key with the given TTL.
func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

// Delete removes the given keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if s.redis == nil || len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}
