package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/schemas"
	"github.com/spigell/talentscout/internal/scoring"
	"go.uber.org/zap"
)

// Generator produces one guide per call through the model gateway.
type Generator struct {
	gateway ai.Gateway
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewGenerator(gateway ai.Gateway, recorder *metrics.Recorder, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{gateway: gateway, logger: logger, metrics: recorder}
}

type guideInput struct {
	Job       jobInput       `json:"job"`
	Candidate candidateInput `json:"candidate"`
	Match     matchInput     `json:"match"`
	GapAreas  []string       `json:"gap_areas"`
}

type jobInput struct {
	Title           string   `json:"title"`
	RequiredSkills  []string `json:"required_skills"`
	SoftSkills      []string `json:"soft_skills"`
	ExperienceLevel string   `json:"experience_level"`
}

type candidateInput struct {
	Name            string                    `json:"name"`
	Skills          []string                  `json:"skills"`
	ExperienceYears profile.Optional[float64] `json:"experience_years"`
	Summary         string                    `json:"summary"`
}

type matchInput struct {
	Score         int      `json:"score"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	Rationale     string   `json:"rationale"`
}

// Generate asks the model for a guide focused on the candidate's gap areas.
// A payload that does not match the guide shape is retried once in strict mode.
func (g *Generator) Generate(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile, match scoring.MatchResult) (*InterviewGuide, error) {
	fail := func(err error) (*InterviewGuide, error) {
		g.metrics.CapabilityCall(string(ai.TemplateInterviewGuide), metrics.OutcomeFailed)
		return nil, &GenerationFailedError{CandidateID: match.CandidateID, Err: err}
	}

	if job == nil || cand == nil {
		return fail(errors.New("job and candidate profiles are required"))
	}

	input, err := json.MarshalIndent(guideInput{
		Job: jobInput{
			Title:           job.Title,
			RequiredSkills:  job.RequiredSkills.Items(),
			SoftSkills:      job.SoftSkills,
			ExperienceLevel: job.ExperienceLevel.String(),
		},
		Candidate: candidateInput{
			Name:            cand.DisplayName(),
			Skills:          cand.Skills.Items(),
			ExperienceYears: cand.ExperienceYears,
			Summary:         cand.Summary,
		},
		Match: matchInput{
			Score:         match.Score,
			MatchedSkills: match.MatchedSkills.Items(),
			MissingSkills: match.MissingSkills.Items(),
			Rationale:     match.Rationale,
		},
		GapAreas: match.MissingSkills.Items(),
	}, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("marshal guide input: %w", err))
	}

	schema, err := schemas.Get(schemas.InterviewGuide)
	if err != nil {
		return fail(err)
	}

	req := ai.Request{TemplateID: ai.TemplateInterviewGuide, Input: string(input), Schema: schema}
	for attempt := 0; attempt < 2; attempt++ {
		req.Strict = attempt > 0

		var payload ai.Payload
		payload, err = g.gateway.Invoke(ctx, req)
		if err == nil {
			var guide *InterviewGuide
			guide, err = decodeGuide(payload)
			if err == nil {
				guide.CandidateID = match.CandidateID
				guide.FocusSkills = match.MissingSkills.Items()
				g.metrics.CapabilityCall(string(ai.TemplateInterviewGuide), metrics.OutcomeOK)
				g.logger.Debug("interview guide generated",
					zap.String("source_id", match.CandidateID),
					zap.Int("technical_questions", len(guide.TechnicalQuestions)),
				)
				return guide, nil
			}
		}

		if !errors.Is(err, ai.ErrSchemaMismatch) {
			break
		}
		if attempt == 0 {
			g.metrics.CapabilityCall(string(ai.TemplateInterviewGuide), metrics.OutcomeStrictRetry)
			g.logger.Info("interview guide did not match schema, retrying in strict mode",
				zap.String("source_id", match.CandidateID),
				zap.Error(err),
			)
		}
	}

	return fail(err)
}

func decodeGuide(payload ai.Payload) (*InterviewGuide, error) {
	guide := &InterviewGuide{
		TechnicalQuestions:  decodeQuestions(first(payload, "technical_questions", "technical")),
		BehavioralQuestions: decodeQuestions(first(payload, "behavioral_questions", "behavioural_questions", "behavioral")),
		CurveballQuestions:  decodeQuestions(first(payload, "curveball_questions", "curveball")),
		Rubric:              decodeRubric(first(payload, "rubric", "evaluation_rubric")),
	}

	var empty []string
	if len(guide.TechnicalQuestions) == 0 {
		empty = append(empty, "technical_questions: no questions")
	}
	if len(guide.BehavioralQuestions) == 0 {
		empty = append(empty, "behavioral_questions: no questions")
	}
	if len(guide.CurveballQuestions) == 0 {
		empty = append(empty, "curveball_questions: no questions")
	}
	if len(guide.Rubric) == 0 {
		empty = append(empty, "rubric: no criteria")
	}
	if len(empty) > 0 {
		return nil, &ai.SchemaMismatchError{TemplateID: ai.TemplateInterviewGuide, Violations: empty}
	}

	return guide, nil
}

func first(payload ai.Payload, keys ...string) any {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func decodeQuestions(v any) []QA {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case nil:
		return nil
	default:
		items = []any{val}
	}

	out := make([]QA, 0, len(items))
	for _, item := range items {
		switch q := item.(type) {
		case map[string]any:
			question, ok := ai.CoerceString(first(q, "question", "q"))
			if !ok {
				continue
			}
			intent, _ := ai.CoerceString(first(q, "intent", "why_asked", "purpose"))
			out = append(out, QA{Question: question, Intent: intent})
		default:
			if question, ok := ai.CoerceString(q); ok {
				out = append(out, QA{Question: question})
			}
		}
	}
	return out
}

func decodeRubric(v any) map[string]RubricEntry {
	rubric := make(map[string]RubricEntry)

	switch val := v.(type) {
	case []any:
		for _, item := range val {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			criterion, ok := ai.CoerceString(first(entry, "criterion", "skill", "area"))
			if !ok {
				continue
			}
			rubric[criterion] = rubricEntry(entry)
		}
	case map[string]any:
		for criterion, raw := range val {
			criterion = strings.TrimSpace(criterion)
			if criterion == "" {
				continue
			}
			switch entry := raw.(type) {
			case map[string]any:
				rubric[criterion] = rubricEntry(entry)
			default:
				if good, ok := ai.CoerceString(entry); ok {
					rubric[criterion] = RubricEntry{Good: good}
				}
			}
		}
	case string:
		if text, ok := ai.CoerceString(val); ok {
			rubric["overall"] = RubricEntry{Good: text}
		}
	}

	return rubric
}

func rubricEntry(entry map[string]any) RubricEntry {
	good, _ := ai.CoerceString(first(entry, "good", "good_answer"))
	bad, _ := ai.CoerceString(first(entry, "bad", "bad_answer"))
	return RubricEntry{Good: good, Bad: bad}
}
