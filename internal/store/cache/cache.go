// Package cache holds the Redis-backed caches in front of the engine's
// slower sources: candidate profiles, computed match results and the
// externally produced AI scores.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/models"
)

const (
	profileKeyPrefix  = "match:profile:"
	scoreKeyPrefix    = "match:score:"
	externalKeyPrefix = "match:ai:"
)

// ProfileLoader is the source of truth behind ProfileCache.
type ProfileLoader interface {
	GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error)
}

// ProfileCache reads through Redis to the loader. Redis failures are logged
// and bypassed; the loader's errors are returned as-is.
type ProfileCache struct {
	next   ProfileLoader
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewProfileCache(next ProfileLoader, rdb *redis.Client, ttl time.Duration, log logger.Logger) *ProfileCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ProfileCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "profile-cache"}),
	}
}

func (c *ProfileCache) GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error) {
	key := profileKeyPrefix + candidateID

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var p models.CandidateProfile
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("discarding corrupt cached profile", map[string]interface{}{"candidateId": candidateID})
	case !stderrors.Is(err, redis.Nil):
		c.logger.Warn("profile cache read failed", map[string]interface{}{
			"candidateId": candidateID,
			"error":       err,
		})
	}

	p, err := c.next.GetProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(p)
	if err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("profile cache write failed", map[string]interface{}{
				"candidateId": candidateID,
				"error":       err,
			})
		}
	}
	return p, nil
}

// Invalidate drops the cached profile after the candidate edits it.
func (c *ProfileCache) Invalidate(ctx context.Context, candidateID string) error {
	if err := c.rdb.Del(ctx, profileKeyPrefix+candidateID).Err(); err != nil {
		return errors.NewCacheFailedError("invalidate profile", err)
	}
	return nil
}

// ScoreCache stores internal match results per (candidate, job).
type ScoreCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewScoreCache(rdb *redis.Client, ttl time.Duration) *ScoreCache {
	return &ScoreCache{rdb: rdb, ttl: ttl}
}

func scoreKey(candidateID, jobID string) string {
	return scoreKeyPrefix + candidateID + ":" + jobID
}

// Get reports a miss as (nil, nil).
func (c *ScoreCache) Get(ctx context.Context, candidateID, jobID string) (*models.MatchResult, error) {
	val, err := c.rdb.Get(ctx, scoreKey(candidateID, jobID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewCacheFailedError("get score", err)
	}
	var r models.MatchResult
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, nil
	}
	return &r, nil
}

func (c *ScoreCache) Set(ctx context.Context, r models.MatchResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.NewCacheFailedError("encode score", err)
	}
	if err := c.rdb.Set(ctx, scoreKey(r.CandidateID, r.JobID), data, c.ttl).Err(); err != nil {
		return errors.NewCacheFailedError("set score", err)
	}
	return nil
}

// ExternalScores keeps AI scores in one hash per candidate, field per job.
type ExternalScores struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewExternalScores(rdb *redis.Client, ttl time.Duration) *ExternalScores {
	return &ExternalScores{rdb: rdb, ttl: ttl}
}

func (e *ExternalScores) Put(ctx context.Context, r models.MatchResult) error {
	r.Source = models.ScoreSourceExternal
	data, err := json.Marshal(r)
	if err != nil {
		return errors.NewCacheFailedError("encode external score", err)
	}
	key := externalKeyPrefix + r.CandidateID
	pipe := e.rdb.TxPipeline()
	pipe.HSet(ctx, key, r.JobID, data)
	pipe.Expire(ctx, key, e.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewCacheFailedError("put external score", err)
	}
	return nil
}

// GetExternalScores returns whatever scores exist for jobIDs; absent jobs
// are simply missing from the map.
func (e *ExternalScores) GetExternalScores(ctx context.Context, candidateID string, jobIDs []string) (map[string]models.MatchResult, error) {
	out := make(map[string]models.MatchResult)
	if len(jobIDs) == 0 {
		return out, nil
	}
	vals, err := e.rdb.HMGet(ctx, externalKeyPrefix+candidateID, jobIDs...).Result()
	if err != nil {
		return nil, errors.NewCacheFailedError("get external scores", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var r models.MatchResult
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			continue
		}
		r.Source = models.ScoreSourceExternal
		out[jobIDs[i]] = r
	}
	return out, nil
}
