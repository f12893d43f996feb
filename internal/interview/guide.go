// Package interview writes interview guides for shortlisted candidates.
package interview

import (
	"errors"
	"fmt"
)

// QA is one interview question and what it is meant to probe.
type QA struct {
	Question string `json:"question"`
	Intent   string `json:"intent,omitempty"`
}

// RubricEntry describes good and bad answers for one criterion.
type RubricEntry struct {
	Good string `json:"good"`
	Bad  string `json:"bad"`
}

// InterviewGuide is shared read-only once generated.
type InterviewGuide struct {
	CandidateID         string                 `json:"candidate_id"`
	TechnicalQuestions  []QA                   `json:"technical_questions"`
	BehavioralQuestions []QA                   `json:"behavioral_questions"`
	CurveballQuestions  []QA                   `json:"curveball_questions"`
	Rubric              map[string]RubricEntry `json:"rubric"`
	FocusSkills         []string               `json:"focus_skills"`
}

// ErrGenerationFailed matches every *GenerationFailedError.
var ErrGenerationFailed = errors.New("interview guide generation failed")

type GenerationFailedError struct {
	CandidateID string
	Err         error
}

func (e *GenerationFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generate interview guide for %s", e.CandidateID)
	}
	return fmt.Sprintf("generate interview guide for %s: %v", e.CandidateID, e.Err)
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}
