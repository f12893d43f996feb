package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/ranking"
	"github.com/spigell/talentscout/internal/scoring"
)

type excludeCandidatesFilter struct {
	toggle
	ids map[string]struct{}
}

// NewExcludeCandidates creates a filter that removes candidates listed in the config.
func NewExcludeCandidates() Filter {
	return &excludeCandidatesFilter{}
}

func (f *excludeCandidatesFilter) Name() string { return "exclude_candidates" }

func (f *excludeCandidatesFilter) Validate(cfg *Config) error {
	f.ids = make(map[string]struct{}, len(cfg.ExcludeCandidates))
	for _, id := range cfg.ExcludeCandidates {
		if id = strings.TrimSpace(id); id != "" {
			f.ids[id] = struct{}{}
		}
	}
	return nil
}

func (f *excludeCandidatesFilter) Apply(_ context.Context, deps Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error) {
	initial := s.Len()
	if len(f.ids) == 0 {
		return s, Step{Initial: initial, Left: initial}, nil
	}

	var excluded []string
	next, dropped := s.Filter(func(r scoring.MatchResult) bool {
		if _, ok := f.ids[r.CandidateID]; ok {
			excluded = append(excluded, r.CandidateID)
			return false
		}
		return true
	})

	if len(excluded) > 0 {
		deps.Logger.Info("excluding candidates listed in config",
			zap.Strings("excluded_candidates", excluded),
			zap.Int("candidates_left", next.Len()),
		)
	}

	return next, Step{Initial: initial, Dropped: dropped, Left: next.Len()}, nil
}

func (f *excludeCandidatesFilter) Status() Status {
	details := map[string]string{}
	if len(f.ids) > 0 {
		details["excluded"] = strconv.Itoa(len(f.ids))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type minScoreFilter struct {
	toggle
	threshold int
}

// NewMinScore creates a filter that drops candidates scoring below the threshold.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		return fmt.Errorf("min score must be within 0..100, got %d", cfg.MinScore)
	}
	f.threshold = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error) {
	initial := s.Len()
	next, dropped := s.Filter(func(r scoring.MatchResult) bool {
		return r.Score >= f.threshold
	})

	if dropped > 0 {
		deps.Logger.Info("rejecting candidates below minimum score",
			zap.Int("min_score", f.threshold),
			zap.Int("rejected", dropped),
		)
	}

	return next, Step{Initial: initial, Dropped: dropped, Left: next.Len()}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_score": strconv.Itoa(f.threshold)},
	}
}

type requiredSkillsFilter struct {
	toggle
	skills profile.Skills
}

// NewRequiredSkills creates a filter that keeps only candidates matching every listed skill.
func NewRequiredSkills() Filter {
	return &requiredSkillsFilter{}
}

func (f *requiredSkillsFilter) Name() string { return "required_skills" }

func (f *requiredSkillsFilter) Validate(cfg *Config) error {
	f.skills = profile.NewSkills(cfg.RequiredSkills...)
	return nil
}

func (f *requiredSkillsFilter) Apply(_ context.Context, deps Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error) {
	initial := s.Len()
	if f.skills.Len() == 0 {
		return s, Step{Initial: initial, Left: initial}, nil
	}

	next, dropped := s.Filter(func(r scoring.MatchResult) bool {
		return f.skills.Intersect(r.MatchedSkills).Equal(f.skills)
	})

	if dropped > 0 {
		deps.Logger.Info("excluding candidates missing required skills",
			zap.String("skills", f.skills.String()),
			zap.Int("candidates_left", next.Len()),
		)
	}

	return next, Step{Initial: initial, Dropped: dropped, Left: next.Len()}, nil
}

func (f *requiredSkillsFilter) Status() Status {
	details := map[string]string{}
	if f.skills.Len() > 0 {
		details["skills"] = strings.Join(f.skills.Items(), ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type qualitativeFilter struct {
	toggle
	require bool
}

// NewQualitative creates a filter that optionally drops results without a qualitative review.
func NewQualitative() Filter {
	return &qualitativeFilter{}
}

func (f *qualitativeFilter) Name() string { return "qualitative" }

func (f *qualitativeFilter) Validate(cfg *Config) error {
	f.require = cfg.RequireQualitative
	return nil
}

func (f *qualitativeFilter) Apply(_ context.Context, deps Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error) {
	initial := s.Len()
	if !f.require {
		return s, Step{Initial: initial, Left: initial}, nil
	}

	next, dropped := s.Filter(func(r scoring.MatchResult) bool {
		return !r.QualitativeUnavailable
	})

	if dropped > 0 {
		deps.Logger.Info("excluding candidates without qualitative review",
			zap.Int("excluded", dropped),
			zap.Int("candidates_left", next.Len()),
		)
	}

	return next, Step{Initial: initial, Dropped: dropped, Left: next.Len()}, nil
}

func (f *qualitativeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"require_review": strconv.FormatBool(f.require)},
	}
}

type topNFilter struct {
	toggle
	n int
}

// NewTopN creates a filter that keeps the first N candidates.
func NewTopN() Filter {
	return &topNFilter{}
}

func (f *topNFilter) Name() string { return "top_n" }

func (f *topNFilter) Validate(cfg *Config) error {
	if cfg.TopN < 0 {
		return fmt.Errorf("top n must not be negative, got %d", cfg.TopN)
	}
	f.n = cfg.TopN
	return nil
}

func (f *topNFilter) Apply(_ context.Context, _ Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error) {
	initial := s.Len()
	next := s.Top(f.n)
	return next, Step{Initial: initial, Dropped: initial - next.Len(), Left: next.Len()}, nil
}

func (f *topNFilter) Status() Status {
	details := map[string]string{}
	if f.n > 0 {
		details["top_n"] = strconv.Itoa(f.n)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
