// Package pipeline runs one evaluation: job extraction, per-resume extraction
// and scoring in parallel, then ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/talentscout/internal/extraction"
	"github.com/spigell/talentscout/internal/logger"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/ranking"
	"github.com/spigell/talentscout/internal/scoring"
	"github.com/spigell/talentscout/internal/textnorm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

const (
	ReasonDuplicate     = "duplicate source id"
	ReasonMissingSource = "missing source id"
	ReasonExtraction    = "extraction failed"
	ReasonScoring       = "scoring failed"
)

type Config struct {
	Concurrency     int `mapstructure:"concurrency" validate:"gte=0"`
	MaxJobLength    int `mapstructure:"max-job-length" validate:"gte=0"`
	MaxResumeLength int `mapstructure:"max-resume-length" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency:     DefaultConcurrency,
		MaxJobLength:    extraction.DefaultMaxJobLength,
		MaxResumeLength: extraction.DefaultMaxResumeLength,
	}
}

// Document is one resume to evaluate.
type Document struct {
	SourceID string `json:"source_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

type Request struct {
	JobDescription string
	Resumes        []Document
}

// Failure describes a resume that produced no match result.
type Failure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

func (f Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.SourceID, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.SourceID, f.Reason, f.Err)
}

// Result is the outcome of one run. Candidates holds every successfully
// extracted profile keyed by source id.
type Result struct {
	RunID      string
	Job        *profile.JobProfile
	Candidates map[string]*profile.CandidateProfile
	Shortlist  ranking.RankedShortlist
	Failures   []Failure
	Skipped    []string
	Cancelled  bool
}

// Extractor turns raw text into profiles.
type Extractor interface {
	ExtractJob(ctx context.Context, text string) (*profile.JobProfile, error)
	ExtractCandidate(ctx context.Context, sourceID, text string) (*profile.CandidateProfile, error)
}

// Scorer returns an error only when the context is done.
type Scorer interface {
	Score(ctx context.Context, job *profile.JobProfile, cand *profile.CandidateProfile) (scoring.MatchResult, error)
}

type Pipeline struct {
	cfg       Config
	extractor Extractor
	scorer    Scorer
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

func New(cfg Config, extractor Extractor, scorer Scorer, recorder *metrics.Recorder, log *zap.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, extractor: extractor, scorer: scorer, metrics: recorder, logger: log}
}

// run collects the outcome of every dispatched resume. Entries keep the input
// position so that failures and skips are reported in request order.
type run struct {
	id  string
	job *profile.JobProfile
	log *zap.Logger

	mu         sync.Mutex
	matches    []scoring.MatchResult
	candidates map[string]*profile.CandidateProfile
	failures   []indexed[Failure]
	skipped    []indexed[string]

	extractMu   sync.Mutex
	extractions map[string]*sharedExtraction
}

type indexed[T any] struct {
	pos int
	val T
}

type sharedExtraction struct {
	once sync.Once
	cand *profile.CandidateProfile
	err  error
}

// Run evaluates every resume against the job description. Per-resume failures
// are collected in the result. The returned error is set only when the job
// description itself cannot be extracted. A cancelled context stops dispatch;
// resumes that did not complete are listed in Skipped.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String(logger.FieldRunID, runID))
	started := time.Now()

	log.Info("evaluation started", zap.Int("resumes", len(req.Resumes)), zap.Int("concurrency", p.cfg.Concurrency))

	job, err := p.extractor.ExtractJob(ctx, req.JobDescription)
	if err != nil {
		p.metrics.Run(metrics.OutcomeFailed, 0)
		return nil, fmt.Errorf("extract job description: %w", err)
	}

	r := &run{
		id:          runID,
		job:         job,
		log:         log,
		candidates:  make(map[string]*profile.CandidateProfile),
		extractions: make(map[string]*sharedExtraction),
	}

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	seen := make(map[string]struct{}, len(req.Resumes))
	for pos, doc := range req.Resumes {
		doc.SourceID = strings.TrimSpace(doc.SourceID)
		if doc.SourceID == "" {
			r.fail(pos, Failure{SourceID: fmt.Sprintf("#%d", pos+1), Reason: ReasonMissingSource})
			continue
		}
		if _, dup := seen[doc.SourceID]; dup {
			r.fail(pos, Failure{SourceID: doc.SourceID, Reason: ReasonDuplicate})
			continue
		}
		seen[doc.SourceID] = struct{}{}

		if ctx.Err() != nil {
			r.skip(pos, doc.SourceID)
			continue
		}

		g.Go(func() error {
			p.evaluate(ctx, r, pos, doc)
			return nil
		})
	}
	_ = g.Wait()

	result := r.result()
	result.Cancelled = ctx.Err() != nil

	outcome := metrics.OutcomeOK
	if result.Cancelled {
		outcome = metrics.OutcomeCancelled
	}
	p.metrics.Run(outcome, result.Shortlist.Len())

	log.Info("evaluation finished",
		zap.Int("shortlisted", result.Shortlist.Len()),
		zap.Int("failed", len(result.Failures)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("elapsed", time.Since(started)),
	)

	return result, nil
}

func (p *Pipeline) evaluate(ctx context.Context, r *run, pos int, doc Document) {
	log := logger.WithFields(p.logger, logger.CandidateFields(r.id, doc.SourceID)...)
	started := time.Now()

	if ctx.Err() != nil {
		r.skip(pos, doc.SourceID)
		p.metrics.Candidate(metrics.OutcomeSkipped, 0)
		return
	}

	cand, err := p.extract(ctx, r, doc)
	if err != nil {
		if ctx.Err() != nil {
			r.skip(pos, doc.SourceID)
			p.metrics.Candidate(metrics.OutcomeSkipped, 0)
			return
		}
		log.Warn("candidate extraction failed", zap.Error(err))
		reason := ReasonExtraction
		var exErr *extraction.ExtractionFailedError
		if errors.As(err, &exErr) && exErr.Reason != "" {
			reason = exErr.Reason
		}
		r.fail(pos, Failure{SourceID: doc.SourceID, Reason: reason, Err: err})
		p.metrics.Candidate(metrics.OutcomeFailed, time.Since(started))
		return
	}

	match, err := p.scorer.Score(ctx, r.job, cand)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("candidate scoring interrupted", zap.Error(err))
			r.skip(pos, doc.SourceID)
			p.metrics.Candidate(metrics.OutcomeSkipped, 0)
			return
		}
		log.Warn("candidate scoring failed", zap.Error(err))
		r.fail(pos, Failure{SourceID: doc.SourceID, Reason: ReasonScoring, Err: err})
		p.metrics.Candidate(metrics.OutcomeFailed, time.Since(started))
		return
	}

	r.complete(cand, match)
	p.metrics.Candidate(metrics.OutcomeOK, time.Since(started))
	log.Info("candidate evaluated", zap.Int("score", match.Score))
}

// extract runs one extraction per distinct resume text within the run.
func (p *Pipeline) extract(ctx context.Context, r *run, doc Document) (*profile.CandidateProfile, error) {
	digest := textnorm.Digest(doc.Text)

	r.extractMu.Lock()
	shared, ok := r.extractions[digest]
	if !ok {
		shared = &sharedExtraction{}
		r.extractions[digest] = shared
	}
	r.extractMu.Unlock()

	shared.once.Do(func() {
		shared.cand, shared.err = p.extractor.ExtractCandidate(ctx, doc.SourceID, doc.Text)
	})
	if shared.err != nil {
		return nil, shared.err
	}
	if shared.cand.SourceID != doc.SourceID {
		r.log.Debug("reusing extraction of identical resume",
			zap.String(logger.FieldSourceID, doc.SourceID),
			zap.String("shared_with", shared.cand.SourceID),
		)
		return shared.cand.WithSourceID(doc.SourceID), nil
	}
	return shared.cand, nil
}

func (r *run) complete(cand *profile.CandidateProfile, match scoring.MatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[cand.SourceID] = cand
	r.matches = append(r.matches, match)
}

func (r *run) fail(pos int, f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, indexed[Failure]{pos: pos, val: f})
}

func (r *run) skip(pos int, sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, indexed[string]{pos: pos, val: sourceID})
}

func (r *run) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.Slice(r.failures, func(i, j int) bool { return r.failures[i].pos < r.failures[j].pos })
	sort.Slice(r.skipped, func(i, j int) bool { return r.skipped[i].pos < r.skipped[j].pos })

	res := &Result{
		RunID:      r.id,
		Job:        r.job,
		Candidates: r.candidates,
		Shortlist:  ranking.Rank(r.matches),
	}
	for _, f := range r.failures {
		res.Failures = append(res.Failures, f.val)
	}
	for _, s := range r.skipped {
		res.Skipped = append(res.Skipped, s.val)
	}
	return res
}
