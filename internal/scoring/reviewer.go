package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/schemas"
)

// GatewayReviewer asks the model to judge soft-skill fit.
type GatewayReviewer struct {
	gateway ai.Gateway
	max     int
	metrics *metrics.Recorder
}

func NewGatewayReviewer(gateway ai.Gateway, maxAdjustment int, recorder *metrics.Recorder) *GatewayReviewer {
	return &GatewayReviewer{
		gateway: gateway,
		max:     Config{MaxQualitativeAdjustment: maxAdjustment}.maxQualitative(),
		metrics: recorder,
	}
}

type reviewInput struct {
	JobTitle         string   `json:"job_title"`
	SoftSkills       []string `json:"soft_skills"`
	CandidateSummary string   `json:"candidate_summary"`
	CandidateSkills  []string `json:"candidate_skills"`
}

func (r *GatewayReviewer) Review(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile) (Review, error) {
	if job == nil || cand == nil {
		return Review{}, errors.New("job and candidate profiles are required")
	}

	input, err := json.MarshalIndent(reviewInput{
		JobTitle:         job.Title,
		SoftSkills:       job.SoftSkills,
		CandidateSummary: cand.Summary,
		CandidateSkills:  cand.Skills.Items(),
	}, "", "  ")
	if err != nil {
		return Review{}, fmt.Errorf("marshal review input: %w", err)
	}

	schema, err := schemas.Get(schemas.QualitativeReview)
	if err != nil {
		return Review{}, err
	}

	template := string(ai.TemplateQualitativeReview)
	payload, err := r.gateway.Invoke(ctx, ai.Request{
		TemplateID: ai.TemplateQualitativeReview,
		Input:      string(input),
		Schema:     schema,
	})
	if err != nil {
		r.metrics.CapabilityCall(template, metrics.OutcomeFailed)
		return Review{}, fmt.Errorf("qualitative review: %w", err)
	}

	adjustment, ok := ai.CoerceFloat(payload["adjustment"])
	if !ok {
		r.metrics.CapabilityCall(template, metrics.OutcomeFailed)
		return Review{}, &ai.SchemaMismatchError{
			TemplateID: ai.TemplateQualitativeReview,
			Violations: []string{"adjustment: not a number"},
		}
	}
	r.metrics.CapabilityCall(template, metrics.OutcomeOK)

	rationale, _ := ai.CoerceString(payload["rationale"])
	return Review{
		Adjustment: clamp(int(math.Round(adjustment)), -r.max, r.max),
		Rationale:  rationale,
	}, nil
}
