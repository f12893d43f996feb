package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/scoring"
)

type countingGenerator struct {
	calls   atomic.Int32
	release chan struct{}
	errs    []error
	mu      sync.Mutex
}

func (g *countingGenerator) Generate(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile, match scoring.MatchResult) (*InterviewGuide, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}

	g.mu.Lock()
	var err error
	if len(g.errs) > 0 {
		err = g.errs[0]
		g.errs = g.errs[1:]
	}
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &InterviewGuide{CandidateID: match.CandidateID, TechnicalQuestions: []QA{{Question: "Q"}}}, nil
}

func TestServiceSharesConcurrentRequests(t *testing.T) {
	gen := &countingGenerator{release: make(chan struct{})}
	svc := NewService(gen, nil, nil)

	const callers = 8
	var wg sync.WaitGroup
	guides := make([]*InterviewGuide, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			guides[i], errs[i] = svc.Guide(context.Background(), "run-1", testJob(), testCandidate(), testMatch())
		}(i)
	}

	close(gen.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if guides[i] != guides[0] {
			t.Fatalf("caller %d got a different guide", i)
		}
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected 1 generation, got %d", got)
	}
}

func TestServiceCachesPerJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := NewService(&countingGenerator{}, metrics.NewRecorder(metrics.WithRegisterer(reg)), nil)
	gen := svc.generator.(*countingGenerator)

	ctx := context.Background()
	if _, err := svc.Guide(ctx, "run-1", testJob(), testCandidate(), testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Guide(ctx, "run-1", testJob(), testCandidate(), testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected cached guide, got %d generations", got)
	}

	other := testJob()
	other.Title = "Platform Engineer"
	if _, err := svc.Guide(ctx, "run-1", other, testCandidate(), testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expected a new guide for another job, got %d generations", got)
	}

	expected := `
# HELP talentscout_pipeline_interview_guides_total Interview guide requests by outcome
# TYPE talentscout_pipeline_interview_guides_total counter
talentscout_pipeline_interview_guides_total{outcome="cache_hit"} 1
talentscout_pipeline_interview_guides_total{outcome="ok"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "talentscout_pipeline_interview_guides_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	gen := &countingGenerator{errs: []error{&GenerationFailedError{CandidateID: "ada.pdf", Err: errors.New("boom")}}}
	svc := NewService(gen, nil, nil)

	ctx := context.Background()
	if _, err := svc.Guide(ctx, "run-1", testJob(), testCandidate(), testMatch()); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}

	guide, err := svc.Guide(ctx, "run-1", testJob(), testCandidate(), testMatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guide.CandidateID != "ada.pdf" {
		t.Fatalf("unexpected guide: %+v", guide)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expected 2 generations, got %d", got)
	}
}

func TestServiceScopesAndForget(t *testing.T) {
	gen := &countingGenerator{}
	svc := NewService(gen, nil, nil)
	ctx := context.Background()

	for _, scope := range []string{"run-1", "run-2"} {
		if _, err := svc.Guide(ctx, scope, testJob(), testCandidate(), testMatch()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expected one generation per run, got %d", got)
	}

	changed := testCandidate()
	changed.RawTextDigest = "another resume"
	if _, err := svc.Guide(ctx, "run-1", testJob(), changed, testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gen.calls.Load(); got != 3 {
		t.Fatalf("expected a new guide for another resume, got %d generations", got)
	}

	svc.Forget("run-1")
	if svc.Scopes() != 1 {
		t.Fatalf("expected 1 scope left, got %d", svc.Scopes())
	}
	if _, err := svc.Guide(ctx, "run-2", testJob(), testCandidate(), testMatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gen.calls.Load(); got != 3 {
		t.Fatalf("expected run-2 to stay cached, got %d generations", got)
	}
}
