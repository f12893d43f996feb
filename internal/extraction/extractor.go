// Package extraction turns normalized job description and resume text into
// structured profiles through the model gateway.
package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/logger"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/schemas"
	"github.com/spigell/talentscout/internal/textnorm"
	"go.uber.org/zap"
)

// JobSourceID identifies the job description in errors and logs.
const JobSourceID = "job-description"

const (
	DefaultMaxJobLength    = 8000
	DefaultMaxResumeLength = 4000
)

type Extractor struct {
	gateway         ai.Gateway
	maxJobLength    int
	maxResumeLength int
	logger          *zap.Logger
	metrics         *metrics.Recorder
}

type Option func(*Extractor)

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithMaxLengths bounds the normalized input sent to the model, in runes.
func WithMaxLengths(job, resume int) Option {
	return func(e *Extractor) {
		if job > 0 {
			e.maxJobLength = job
		}
		if resume > 0 {
			e.maxResumeLength = resume
		}
	}
}

func New(gateway ai.Gateway, opts ...Option) *Extractor {
	e := &Extractor{
		gateway:         gateway,
		maxJobLength:    DefaultMaxJobLength,
		maxResumeLength: DefaultMaxResumeLength,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractJob builds the job profile from a raw job description.
func (e *Extractor) ExtractJob(ctx context.Context, text string) (*profile.JobProfile, error) {
	normalized := textnorm.Normalize(text, e.maxJobLength)
	if normalized == "" {
		return nil, &ExtractionFailedError{SourceID: JobSourceID, Reason: "job description is empty"}
	}
	e.logTruncated(JobSourceID, normalized, e.maxJobLength)

	payload, err := e.invoke(ctx, JobSourceID, ai.TemplateExtractJob, schemas.JobProfile, normalized)
	if err != nil {
		return nil, err
	}

	job := decodeJob(payload)
	e.logger.Debug("job profile extracted",
		zap.String("title", job.Title),
		zap.Int("required_skills", job.RequiredSkills.Len()),
		zap.String("experience_level", job.ExperienceLevel.String()),
	)
	return job, nil
}

// ExtractCandidate builds a candidate profile from one resume.
func (e *Extractor) ExtractCandidate(ctx context.Context, sourceID, text string) (*profile.CandidateProfile, error) {
	normalized := textnorm.Normalize(text, e.maxResumeLength)
	if normalized == "" {
		return nil, &ExtractionFailedError{SourceID: sourceID, Reason: "resume text is empty"}
	}
	e.logTruncated(sourceID, normalized, e.maxResumeLength)

	payload, err := e.invoke(ctx, sourceID, ai.TemplateExtractCandidate, schemas.CandidateProfile, normalized)
	if err != nil {
		return nil, err
	}

	cand := decodeCandidate(payload)
	cand.SourceID = sourceID
	cand.RawTextDigest = textnorm.Digest(text)
	return cand, nil
}

func (e *Extractor) logTruncated(sourceID, normalized string, limit int) {
	if !textnorm.Truncated(normalized) {
		return
	}
	e.logger.Info("input text truncated before extraction",
		zap.String(logger.FieldSourceID, sourceID),
		zap.Int("max_length", limit),
	)
}

// invoke calls the gateway and repeats the call once in strict mode when the
// first payload does not match the schema.
func (e *Extractor) invoke(ctx context.Context, sourceID string, template ai.TemplateID, schemaName, input string) (ai.Payload, error) {
	schema, err := schemas.Get(schemaName)
	if err != nil {
		return nil, &ExtractionFailedError{SourceID: sourceID, Reason: "output schema unavailable", Err: err}
	}

	log := logger.WithFields(e.logger,
		zap.String(logger.FieldSourceID, sourceID),
		zap.String(logger.FieldTemplate, string(template)),
	)

	req := ai.Request{TemplateID: template, Input: input, Schema: schema}
	started := time.Now()

	payload, err := e.gateway.Invoke(ctx, req)
	if errors.Is(err, ai.ErrSchemaMismatch) {
		e.metrics.CapabilityCall(string(template), metrics.OutcomeStrictRetry)
		log.Info("model output did not match schema, retrying in strict mode", zap.Error(err))

		req.Strict = true
		payload, err = e.gateway.Invoke(ctx, req)
		if errors.Is(err, ai.ErrSchemaMismatch) {
			e.metrics.CapabilityCall(string(template), metrics.OutcomeFailed)
			return nil, &ExtractionFailedError{
				SourceID: sourceID,
				Reason:   "model output did not match schema after strict retry",
				Err:      err,
			}
		}
	}

	if err != nil {
		e.metrics.CapabilityCall(string(template), metrics.OutcomeFailed)
		return nil, &ExtractionFailedError{SourceID: sourceID, Reason: "model call failed", Err: err}
	}

	e.metrics.CapabilityCall(string(template), metrics.OutcomeOK)
	log.Debug("model call completed", zap.Duration("elapsed", time.Since(started)), zap.Bool("strict", req.Strict))
	return payload, nil
}
