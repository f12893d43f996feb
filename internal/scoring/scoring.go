// Package scoring computes how well a candidate profile matches a job profile.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/talentscout/internal/profile"
	"go.uber.org/zap"
)

// MatchResult is the score of one candidate against the job. It is not
// modified after creation.
type MatchResult struct {
	CandidateID            string         `json:"candidate_id"`
	CandidateName          string         `json:"candidate_name"`
	CandidateEmail         string         `json:"candidate_email,omitempty"`
	Score                  int            `json:"score"`
	BaseScore              int            `json:"base_score"`
	ExperienceAdjustment   int            `json:"experience_adjustment"`
	QualitativeAdjustment  int            `json:"qualitative_adjustment"`
	QualitativeUnavailable bool           `json:"qualitative_unavailable"`
	MatchedSkills          profile.Skills `json:"matched_skills"`
	MissingSkills          profile.Skills `json:"missing_skills"`
	Rationale              string         `json:"rationale"`
}

// Review is the qualitative judgement of soft-skill fit.
type Review struct {
	Adjustment int
	Rationale  string
}

// Reviewer judges fit beyond the skill overlap.
type Reviewer interface {
	Review(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile) (Review, error)
}

// BaseScore is the share of required skills the candidate has, scaled to 0..100.
func BaseScore(job *profile.JobProfile, cand *profile.CandidateProfile) (int, profile.Skills, profile.Skills) {
	var required, have profile.Skills
	if job != nil {
		required = job.RequiredSkills
	}
	if cand != nil {
		have = cand.Skills
	}

	matched := required.Intersect(have)
	missing := required.Difference(have)

	denominator := required.Len()
	if denominator < 1 {
		denominator = 1
	}
	score := int(math.Round(100 * float64(matched.Len()) / float64(denominator)))

	return score, matched, missing
}

type Engine struct {
	cfg      Config
	reviewer Reviewer
	logger   *zap.Logger
}

func NewEngine(cfg Config, reviewer Reviewer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, reviewer: reviewer, logger: logger}
}

// Score returns the match of cand against job. A failed or disabled
// qualitative review marks the result instead of failing it. The only error
// is the context's, so cancelled work never yields a result.
func (e *Engine) Score(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile) (MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return MatchResult{}, err
	}

	base, matched, missing := BaseScore(job, cand)
	expAdj, expNote := e.cfg.experience(job, cand)

	result := MatchResult{
		BaseScore:            base,
		ExperienceAdjustment: expAdj,
		MatchedSkills:        matched,
		MissingSkills:        missing,
	}
	if cand != nil {
		result.CandidateID = cand.SourceID
		result.CandidateName = cand.DisplayName()
		result.CandidateEmail = cand.Email.OrElse("")
	}

	var reviewNote string
	if e.cfg.Qualitative && e.reviewer != nil {
		review, err := e.reviewer.Review(ctx, job, cand)
		switch {
		case err != nil && ctx.Err() != nil:
			return MatchResult{}, ctx.Err()
		case err != nil:
			e.logger.Warn("qualitative review unavailable",
				zap.String("source_id", result.CandidateID),
				zap.Error(err),
			)
			result.QualitativeUnavailable = true
		default:
			limit := e.cfg.maxQualitative()
			result.QualitativeAdjustment = clamp(review.Adjustment, -limit, limit)
			reviewNote = strings.TrimSpace(review.Rationale)
		}
	} else {
		result.QualitativeUnavailable = true
	}

	result.Score = clamp(base+expAdj+result.QualitativeAdjustment, 0, 100)
	result.Rationale = rationale(matched, missing, expNote, reviewNote, result.QualitativeUnavailable)

	e.logger.Debug("candidate scored",
		zap.String("source_id", result.CandidateID),
		zap.Int("score", result.Score),
		zap.Int("base_score", base),
		zap.Int("experience_adjustment", expAdj),
		zap.Int("qualitative_adjustment", result.QualitativeAdjustment),
	)

	return result, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func rationale(matched, missing profile.Skills, expNote, reviewNote string, reviewUnavailable bool) string {
	var parts []string

	required := matched.Len() + missing.Len()
	ratio := 0.0
	if required > 0 {
		ratio = float64(matched.Len()) / float64(required)
	}

	switch {
	case matched.Len() == 0:
		parts = append(parts, "No skill matches")
	case ratio >= 0.7:
		parts = append(parts, fmt.Sprintf("Strong skill match (%s)", matched))
	case ratio >= 0.4:
		parts = append(parts, fmt.Sprintf("Moderate skill match (%s)", matched))
	default:
		parts = append(parts, fmt.Sprintf("Weak skill match (%s)", matched))
	}

	if missing.Len() > 0 {
		parts = append(parts, fmt.Sprintf("Missing: %s", missing))
	}

	if expNote != "" {
		parts = append(parts, expNote)
	}

	switch {
	case reviewNote != "":
		parts = append(parts, reviewNote)
	case reviewUnavailable:
		parts = append(parts, "qualitative review unavailable")
	}

	return strings.Join(parts, ". ")
}

func formatBandNote(years float64, position string, level profile.ExperienceLevel, band Band) string {
	bounds := formatYears(band.MinYears) + "+"
	if band.MaxYears > 0 {
		bounds = formatYears(band.MinYears) + "-" + formatYears(band.MaxYears)
	}
	return fmt.Sprintf("%s years %s %s band (%s years)", formatYears(years), position, level, bounds)
}

func formatYears(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
