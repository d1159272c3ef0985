package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/logger"
)

// StatusCache implements study.StatusCache using the generic Redis Cache.
// Cache failures are logged and absorbed: a broken Redis degrades to
// store-only reads, it never fails a request.
type StatusCache struct {
	cache *Cache
	log   *logger.Logger
}

// NewStatusCache creates a new StatusCache.
func NewStatusCache(cache *Cache, log *logger.Logger) *StatusCache {
	if log == nil {
		log = logger.Default()
	}
	return &StatusCache{
		cache: cache,
		log:   log.With(logger.Component("status_cache")),
	}
}

// StatusKey builds the cache key for one learner's level status.
func StatusKey(learnerID string, level catalog.LevelTag) string {
	return fmt.Sprintf("%s%s:%s", PrefixStatus, learnerID, level)
}

// Get returns the cached status, or a miss.
func (s *StatusCache) Get(ctx context.Context, learnerID string, level catalog.LevelTag) (*study.LevelStatus, bool) {
	var status study.LevelStatus
	err := s.cache.Get(ctx, StatusKey(learnerID, level), &status)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("status cache read failed",
				logger.LearnerID(learnerID),
				logger.LevelTag(string(level)),
				logger.Err(err))
		}
		return nil, false
	}
	return &status, true
}

// Set stores the status under the level-status TTL.
func (s *StatusCache) Set(ctx context.Context, learnerID string, status *study.LevelStatus) {
	if status == nil {
		return
	}
	if err := s.cache.Set(ctx, StatusKey(learnerID, status.Level), status, TTLLevelStatus); err != nil {
		s.log.Warn("status cache write failed",
			logger.LearnerID(learnerID),
			logger.LevelTag(string(status.Level)),
			logger.Err(err))
	}
}

// Invalidate drops the cached status after a study mutation.
func (s *StatusCache) Invalidate(ctx context.Context, learnerID string, level catalog.LevelTag) {
	if err := s.cache.Delete(ctx, StatusKey(learnerID, level)); err != nil {
		s.log.Warn("status cache invalidation failed",
			logger.LearnerID(learnerID),
			logger.LevelTag(string(level)),
			logger.Err(err))
	}
}

var _ study.StatusCache = (*StatusCache)(nil)
