package interview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/scoring"
)

type fakeResponse struct {
	payload ai.Payload
	err     error
}

type fakeGateway struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []ai.Request
}

func (f *fakeGateway) Invoke(ctx context.Context, req ai.Request) (ai.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.responses[0]
	f.responses = f.responses[1:]
	return res.payload, res.err
}

func testJob() *profile.JobProfile {
	return &profile.JobProfile{
		Title:           "Backend Engineer",
		RequiredSkills:  profile.NewSkills("go", "postgresql", "kubernetes"),
		SoftSkills:      []string{"communication"},
		ExperienceLevel: profile.LevelSenior,
	}
}

func testCandidate() *profile.CandidateProfile {
	return &profile.CandidateProfile{
		SourceID:        "ada.pdf",
		Name:            profile.Some("Ada Lovelace"),
		Email:           profile.Some("ada@example.com"),
		Skills:          profile.NewSkills("go", "postgresql"),
		ExperienceYears: profile.Some(6.0),
		Summary:         "Backend engineer.",
	}
}

func testMatch() scoring.MatchResult {
	return scoring.MatchResult{
		CandidateID:   "ada.pdf",
		CandidateName: "Ada Lovelace",
		Score:         72,
		MatchedSkills: profile.NewSkills("go", "postgresql"),
		MissingSkills: profile.NewSkills("kubernetes"),
		Rationale:     "Moderate skill match.",
	}
}

func fullGuide() ai.Payload {
	return ai.Payload{
		"technical_questions": []any{
			map[string]any{"question": "How would you run a stateful service on Kubernetes?", "intent": "kubernetes gap"},
			"Explain PostgreSQL isolation levels.",
		},
		"behavioral_questions": []any{"Tell us about a disagreement with a teammate."},
		"curveball_questions":  []any{map[string]any{"question": "Estimate the number of pods in the world."}},
		"rubric": []any{
			map[string]any{"criterion": "kubernetes", "good": "Mentions StatefulSets", "bad": "Only knows docker run"},
		},
	}
}

func TestGenerate(t *testing.T) {
	gw := &fakeGateway{responses: []fakeResponse{{payload: fullGuide()}}}
	g := NewGenerator(gw, nil, nil)

	guide, err := g.Generate(context.Background(), testJob(), testCandidate(), testMatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if guide.CandidateID != "ada.pdf" {
		t.Fatalf("unexpected candidate id: %q", guide.CandidateID)
	}
	if len(guide.TechnicalQuestions) != 2 {
		t.Fatalf("expected 2 technical questions, got %d", len(guide.TechnicalQuestions))
	}
	if guide.TechnicalQuestions[0].Intent != "kubernetes gap" {
		t.Fatalf("unexpected intent: %q", guide.TechnicalQuestions[0].Intent)
	}
	if guide.TechnicalQuestions[1].Question != "Explain PostgreSQL isolation levels." {
		t.Fatalf("unexpected question: %q", guide.TechnicalQuestions[1].Question)
	}
	if entry := guide.Rubric["kubernetes"]; entry.Good != "Mentions StatefulSets" || entry.Bad != "Only knows docker run" {
		t.Fatalf("unexpected rubric entry: %+v", entry)
	}
	if len(guide.FocusSkills) != 1 || guide.FocusSkills[0] != "kubernetes" {
		t.Fatalf("unexpected focus skills: %v", guide.FocusSkills)
	}

	if len(gw.requests) != 1 {
		t.Fatalf("expected 1 call, got %d", len(gw.requests))
	}
	req := gw.requests[0]
	if req.TemplateID != ai.TemplateInterviewGuide || req.Strict || req.Schema == nil {
		t.Fatalf("unexpected request: %+v", req)
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(req.Input), &input); err != nil {
		t.Fatalf("input is not JSON: %v", err)
	}
	gaps, _ := input["gap_areas"].([]any)
	if len(gaps) != 1 || gaps[0] != "kubernetes" {
		t.Fatalf("unexpected gap areas: %v", input["gap_areas"])
	}
	cand, _ := input["candidate"].(map[string]any)
	if _, ok := cand["email"]; ok {
		t.Fatalf("candidate email must not be sent to the model")
	}
}

func TestGenerateAcceptsLegacyShape(t *testing.T) {
	gw := &fakeGateway{responses: []fakeResponse{{payload: ai.Payload{
		"technical_questions":  []any{"Q1", "Q2", "Q3"},
		"behavioral_questions": []any{"B1", "B2"},
		"curveball":            "How many piano tuners are in Chicago?",
		"evaluation_rubric":    "Good answers cite production experience.",
	}}}}
	g := NewGenerator(gw, nil, nil)

	guide, err := g.Generate(context.Background(), testJob(), testCandidate(), testMatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guide.CurveballQuestions) != 1 || guide.CurveballQuestions[0].Question != "How many piano tuners are in Chicago?" {
		t.Fatalf("unexpected curveball: %+v", guide.CurveballQuestions)
	}
	if guide.Rubric["overall"].Good != "Good answers cite production experience." {
		t.Fatalf("unexpected rubric: %+v", guide.Rubric)
	}
}

func TestGenerateStrictRetryOnEmptySection(t *testing.T) {
	incomplete := fullGuide()
	incomplete["behavioral_questions"] = []any{}

	gw := &fakeGateway{responses: []fakeResponse{{payload: incomplete}, {payload: fullGuide()}}}
	g := NewGenerator(gw, nil, nil)

	if _, err := g.Generate(context.Background(), testJob(), testCandidate(), testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gw.requests) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(gw.requests))
	}
	if !gw.requests[1].Strict {
		t.Fatalf("expected second call to be strict")
	}
}

func TestGenerateFailsAfterStrictRetry(t *testing.T) {
	mismatch := &ai.SchemaMismatchError{Violations: []string{"technical_questions: Array must have at least 1 items"}}
	gw := &fakeGateway{responses: []fakeResponse{{err: mismatch}, {err: mismatch}}}
	g := NewGenerator(gw, nil, nil)

	_, err := g.Generate(context.Background(), testJob(), testCandidate(), testMatch())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if !errors.Is(err, ai.ErrSchemaMismatch) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}

	var genErr *GenerationFailedError
	if !errors.As(err, &genErr) || genErr.CandidateID != "ada.pdf" {
		t.Fatalf("unexpected error: %#v", err)
	}
	if len(gw.requests) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(gw.requests))
	}
}

func TestGenerateDoesNotRetryTransportErrors(t *testing.T) {
	gw := &fakeGateway{responses: []fakeResponse{{err: ai.Unavailable(errors.New("503"))}}}
	g := NewGenerator(gw, nil, nil)

	_, err := g.Generate(context.Background(), testJob(), testCandidate(), testMatch())
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, ai.ErrGatewayUnavailable) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gw.requests) != 1 {
		t.Fatalf("expected 1 call, got %d", len(gw.requests))
	}
}

func TestDecodeRubricShapes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want map[string]RubricEntry
	}{
		{
			name: "map of entries",
			in:   map[string]any{"go": map[string]any{"good": "g", "bad": "b"}},
			want: map[string]RubricEntry{"go": {Good: "g", Bad: "b"}},
		},
		{
			name: "map of strings",
			in:   map[string]any{"go": "knows channels", " ": "ignored"},
			want: map[string]RubricEntry{"go": {Good: "knows channels"}},
		},
		{
			name: "array without criterion",
			in:   []any{map[string]any{"good": "g"}},
			want: map[string]RubricEntry{},
		},
		{
			name: "placeholder string",
			in:   "N/A",
			want: map[string]RubricEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeRubric(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("unexpected rubric: %+v", got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("unexpected entry %q: %+v", k, got[k])
				}
			}
		})
	}
}
