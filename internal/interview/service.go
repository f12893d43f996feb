package interview

import (
	"context"
	"sync"

	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/scoring"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GuideGenerator produces a fresh guide on every call.
type GuideGenerator interface {
	Generate(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile, match scoring.MatchResult) (*InterviewGuide, error)
}

// Service generates guides lazily and memoizes them per scope, candidate and
// job. A scope is usually one evaluation run, so that runs reusing a source id
// never see each other's guides. Concurrent requests for the same guide share
// one model call. Failures are not cached.
type Service struct {
	generator GuideGenerator
	logger    *zap.Logger
	metrics   *metrics.Recorder

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]map[string]*InterviewGuide
}

func NewService(generator GuideGenerator, recorder *metrics.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator: generator,
		logger:    logger,
		metrics:   recorder,
		cache:     make(map[string]map[string]*InterviewGuide),
	}
}

// Guide returns the cached guide or generates it. The returned guide is shared
// and must not be modified.
func (s *Service) Guide(ctx context.Context, scope string, job *profile.JobProfile, cand *profile.CandidateProfile, match scoring.MatchResult) (*InterviewGuide, error) {
	key := cacheKey(job, cand, match.CandidateID)

	if guide, ok := s.cached(scope, key); ok {
		s.metrics.Guide(metrics.OutcomeCacheHit)
		return guide, nil
	}

	v, err, shared := s.group.Do(scope+"\x00"+key, func() (any, error) {
		if guide, ok := s.cached(scope, key); ok {
			return guide, nil
		}

		guide, err := s.generator.Generate(ctx, job, cand, match)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		guides, ok := s.cache[scope]
		if !ok {
			guides = make(map[string]*InterviewGuide)
			s.cache[scope] = guides
		}
		guides[key] = guide
		s.mu.Unlock()
		return guide, nil
	})
	if err != nil {
		s.metrics.Guide(metrics.OutcomeFailed)
		s.logger.Warn("interview guide generation failed",
			zap.String("source_id", match.CandidateID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.Guide(metrics.OutcomeOK)
	s.logger.Debug("interview guide ready", zap.String("source_id", match.CandidateID), zap.Bool("shared", shared))
	return v.(*InterviewGuide), nil
}

// Forget drops the guides cached for scope.
func (s *Service) Forget(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, scope)
}

// Scopes returns the number of scopes holding cached guides.
func (s *Service) Scopes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *Service) cached(scope, key string) (*InterviewGuide, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guide, ok := s.cache[scope][key]
	return guide, ok
}

func cacheKey(job *profile.JobProfile, cand *profile.CandidateProfile, candidateID string) string {
	digest := ""
	if cand != nil {
		digest = cand.RawTextDigest
	}
	return candidateID + "\x00" + digest + "\x00" + job.Digest()
}
