package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spigell/talentscout/internal/extraction"
	"github.com/spigell/talentscout/internal/filtering"
	"github.com/spigell/talentscout/internal/ingest"
	"github.com/spigell/talentscout/internal/interview"
	"github.com/spigell/talentscout/internal/pipeline"
	"github.com/spigell/talentscout/internal/profile"
	"github.com/spigell/talentscout/internal/ranking"
	"github.com/spigell/talentscout/internal/scoring"
	"go.uber.org/zap"
)

type resumeInput struct {
	SourceID string `json:"source_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

type filterInput struct {
	MinScore           int      `json:"min_score" binding:"gte=0,lte=100"`
	RequiredSkills     []string `json:"required_skills"`
	RequireQualitative bool     `json:"require_qualitative"`
	TopN               int      `json:"top_n" binding:"gte=0"`
	ExcludeCandidates  []string `json:"exclude_candidates"`
}

type evaluationRequest struct {
	JobDescription string        `json:"job_description" binding:"required"`
	Resumes        []resumeInput `json:"resumes" binding:"required,min=1,dive"`
	Filters        *filterInput  `json:"filters"`
}

type shortlistQuery struct {
	MinScore int      `form:"min_score" binding:"gte=0,lte=100"`
	Skills   []string `form:"skill"`
	Sort     string   `form:"sort" binding:"omitempty,oneof=score name missing candidate_id"`
	Desc     bool     `form:"desc"`
	Limit    int      `form:"limit" binding:"gte=0"`
}

type failureView struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
	Error    string `json:"error,omitempty"`
}

type evaluationResponse struct {
	RunID     string                 `json:"run_id"`
	Job       *profile.JobProfile    `json:"job"`
	Shortlist []scoring.MatchResult  `json:"shortlist"`
	Total     int                    `json:"total"`
	Failures  []failureView          `json:"failures"`
	Skipped   []string               `json:"skipped"`
	Cancelled bool                   `json:"cancelled"`
	Filters   []filtering.StepResult `json:"filters,omitempty"`
}

func (s *Server) createEvaluation(c *gin.Context) {
	req, ingestFailures, filters, err := s.bindEvaluation(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	ctx := c.Request.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, extraction.ErrExtractionFailed) {
			respondError(c, http.StatusBadGateway, codeExtractionFailed, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, codeInternal, "evaluation failed")
		return
	}
	result.Failures = append(ingestFailures, result.Failures...)

	c.Set("run_id", result.RunID)
	if evicted := s.sessions.put(result.RunID, pipeline.NewSession(result, s.guides)); evicted != nil {
		evicted.Close()
		s.logger.Info("evaluation session evicted",
			zap.String("run_id", evicted.Result().RunID),
			zap.Int("cached_guide_runs", s.guides.Scopes()),
		)
	}

	shortlist, steps, err := filtering.Run(ctx, filters, filtering.Deps{Logger: s.logger}, filtering.DefaultSteps(), result.Shortlist)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	c.JSON(http.StatusCreated, newEvaluationResponse(result, shortlist, steps))
}

func (s *Server) getEvaluation(c *gin.Context) {
	session, ok := s.sessions.get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, codeNotFound, "evaluation not found")
		return
	}

	var q shortlistQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	result := session.Result()
	cfg := &filtering.Config{MinScore: q.MinScore, RequiredSkills: splitList(q.Skills)}
	shortlist, steps, err := filtering.Run(c.Request.Context(), cfg, filtering.Deps{Logger: s.logger}, filtering.DefaultSteps(), result.Shortlist)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	if q.Sort != "" {
		key, err := ranking.ParseSortKey(q.Sort)
		if err != nil {
			respondError(c, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		shortlist = shortlist.SortBy(key, q.Desc)
	}
	shortlist = shortlist.Top(q.Limit)

	c.JSON(http.StatusOK, newEvaluationResponse(result, shortlist, steps))
}

func (s *Server) createGuide(c *gin.Context) {
	session, ok := s.sessions.get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, codeNotFound, "evaluation not found")
		return
	}

	guide, err := session.Guide(c.Request.Context(), c.Param("candidate"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, guide)
	case errors.Is(err, pipeline.ErrCandidateNotFound):
		respondError(c, http.StatusNotFound, codeNotFound, "candidate not found in evaluation")
	case errors.Is(err, interview.ErrGenerationFailed):
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, codeGenerationFailed, err.Error())
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, codeInternal, "interview guide failed")
	}
}

// bindEvaluation accepts either a JSON body or a multipart form with a
// job_description field and one or more resumes files.
func (s *Server) bindEvaluation(c *gin.Context) (pipeline.Request, []pipeline.Failure, *filtering.Config, error) {
	filters := s.opts.Filters

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		req, failures, err := s.bindUpload(c)
		return req, failures, &filters, err
	}

	var body evaluationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return pipeline.Request{}, nil, nil, err
	}
	if len(body.Resumes) > s.opts.MaxResumes {
		return pipeline.Request{}, nil, nil, fmt.Errorf("at most %d resumes per evaluation", s.opts.MaxResumes)
	}

	req := pipeline.Request{JobDescription: body.JobDescription, Resumes: make([]pipeline.Document, 0, len(body.Resumes))}
	for _, r := range body.Resumes {
		req.Resumes = append(req.Resumes, pipeline.Document{SourceID: r.SourceID, Text: r.Text})
	}

	if body.Filters != nil {
		filters = filtering.Config{
			MinScore:           body.Filters.MinScore,
			RequiredSkills:     body.Filters.RequiredSkills,
			RequireQualitative: body.Filters.RequireQualitative,
			TopN:               body.Filters.TopN,
			ExcludeCandidates:  body.Filters.ExcludeCandidates,
		}
	}

	return req, nil, &filters, nil
}

func (s *Server) bindUpload(c *gin.Context) (pipeline.Request, []pipeline.Failure, error) {
	jd := strings.TrimSpace(c.PostForm("job_description"))
	if jd == "" {
		if fh, err := c.FormFile("job_description"); err == nil {
			doc, err := readUpload(fh.Filename, fh.Open)
			if err != nil {
				return pipeline.Request{}, nil, fmt.Errorf("job_description: %w", err)
			}
			jd = strings.TrimSpace(doc.Text)
		}
	}
	if jd == "" {
		return pipeline.Request{}, nil, errors.New("job_description is required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return pipeline.Request{}, nil, err
	}
	files := form.File["resumes"]
	if len(files) == 0 {
		return pipeline.Request{}, nil, errors.New("at least one resumes file is required")
	}
	if len(files) > s.opts.MaxResumes {
		return pipeline.Request{}, nil, fmt.Errorf("at most %d resumes per evaluation", s.opts.MaxResumes)
	}

	req := pipeline.Request{JobDescription: jd}
	var failures []pipeline.Failure
	for _, fh := range files {
		doc, err := readUpload(fh.Filename, fh.Open)
		if err != nil {
			failures = append(failures, pipeline.Failure{SourceID: fh.Filename, Reason: "read failed", Err: err})
			continue
		}
		req.Resumes = append(req.Resumes, doc)
	}

	return req, failures, nil
}

func readUpload(name string, open func() (multipart.File, error)) (pipeline.Document, error) {
	f, err := open()
	if err != nil {
		return pipeline.Document{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, ingest.MaxFileSize+1))
	if err != nil {
		return pipeline.Document{}, err
	}
	return ingest.FromBytes(name, data)
}

func newEvaluationResponse(result *pipeline.Result, shortlist ranking.RankedShortlist, steps []filtering.StepResult) evaluationResponse {
	resp := evaluationResponse{
		RunID:     result.RunID,
		Job:       result.Job,
		Shortlist: shortlist.Items,
		Total:     result.Shortlist.Len(),
		Failures:  make([]failureView, 0, len(result.Failures)),
		Skipped:   result.Skipped,
		Cancelled: result.Cancelled,
		Filters:   steps,
	}
	if resp.Shortlist == nil {
		resp.Shortlist = []scoring.MatchResult{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	for _, f := range result.Failures {
		view := failureView{SourceID: f.SourceID, Reason: f.Reason}
		if f.Err != nil {
			view.Error = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, view)
	}
	return resp
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
