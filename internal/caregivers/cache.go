package caregivers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caring-compass-workers/internal/common/logger"
	"caring-compass-workers/internal/common/metrics"
	"caring-compass-workers/internal/matching"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	cacheKeyPrefix  = "caregivers:active:"

	// generationTTL outlives any snapshot so a generation never resets under a live key.
	generationTTL = 48 * time.Hour
)

// CachedStore keeps one snapshot per calendar day in Redis in front of another
// CaregiverStore. Redis problems never fail a read.
//
// Snapshots are keyed by a per-day generation. Invalidate bumps the generation,
// so a reader that loaded the old data before the bump can only write under a
// key nobody reads any more.
type CachedStore struct {
	next   matching.CaregiverStore
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(next matching.CaregiverStore, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "caregiver-cache"}),
	}
}

// CacheKey is the Redis key holding generation gen of the snapshot for day.
func CacheKey(day time.Time, gen int64) string {
	return fmt.Sprintf("%s%s:v%d", cacheKeyPrefix, day.Format("2006-01-02"), gen)
}

// GenerationKey is the counter Invalidate bumps for day.
func GenerationKey(day time.Time) string {
	return cacheKeyPrefix + day.Format("2006-01-02") + ":gen"
}

func (s *CachedStore) ListActiveCaregivers(ctx context.Context, asOf time.Time) ([]matching.Candidate, error) {
	gen, err := s.redis.Get(ctx, GenerationKey(asOf)).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Warn("caregiver cache generation read failed", map[string]interface{}{
			"key":   GenerationKey(asOf),
			"error": err,
		})
		metrics.CaregiverStoreCacheRequests.WithLabelValues(metrics.CacheError).Inc()
		// Without a generation there is no safe key to write under.
		return s.next.ListActiveCaregivers(ctx, asOf)
	}
	key := CacheKey(asOf, gen)

	raw, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []matching.Candidate
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			metrics.CaregiverStoreCacheRequests.WithLabelValues(metrics.CacheHit).Inc()
			return cached, nil
		}
		s.logger.Warn("discarding undecodable caregiver snapshot", map[string]interface{}{
			"key":   key,
			"error": decodeErr,
		})
		metrics.CaregiverStoreCacheRequests.WithLabelValues(metrics.CacheError).Inc()
	case err == redis.Nil:
		metrics.CaregiverStoreCacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		s.logger.Warn("caregiver cache read failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		metrics.CaregiverStoreCacheRequests.WithLabelValues(metrics.CacheError).Inc()
	}

	candidates, err := s.next.ListActiveCaregivers(ctx, asOf)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		s.logger.Warn("caregiver snapshot not cacheable", map[string]interface{}{"error": err})
		return candidates, nil
	}
	if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("caregiver cache write failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
	return candidates, nil
}

// Invalidate retires every snapshot for day, typically after a visit on that day
// changes. Call it after the change is committed.
func (s *CachedStore) Invalidate(ctx context.Context, day time.Time) error {
	key := GenerationKey(day)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.generationTTL())
		return nil
	})
	return err
}

func (s *CachedStore) generationTTL() time.Duration {
	if s.ttl+time.Hour > generationTTL {
		return s.ttl + time.Hour
	}
	return generationTTL
}
