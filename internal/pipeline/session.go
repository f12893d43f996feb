package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talentscout/internal/interview"
)

var ErrCandidateNotFound = errors.New("candidate not found")

// Session keeps a finished run available to result surfaces and generates
// interview guides on request.
type Session struct {
	result *Result
	guides *interview.Service
}

func NewSession(result *Result, guides *interview.Service) *Session {
	return &Session{result: result, guides: guides}
}

func (s *Session) Result() *Result {
	return s.result
}

// Guide returns the interview guide for a ranked candidate. Guides are cached
// per run.
func (s *Session) Guide(ctx context.Context, candidateID string) (*interview.InterviewGuide, error) {
	match, ok := s.result.Shortlist.Find(candidateID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
	}
	cand, ok := s.result.Candidates[candidateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
	}
	return s.guides.Guide(ctx, s.result.RunID, s.result.Job, cand, match)
}

// Close releases the guides cached for this run.
func (s *Session) Close() {
	s.guides.Forget(s.result.RunID)
}
