// Package api exposes evaluations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spigell/talentscout/internal/filtering"
	"github.com/spigell/talentscout/internal/interview"
	"github.com/spigell/talentscout/internal/pipeline"
	"go.uber.org/zap"
)

const (
	DefaultMaxSessions = 32
	DefaultMaxResumes  = 200
	shutdownTimeout    = 10 * time.Second
)

// Runner executes one evaluation.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Options struct {
	// Filters are applied to new evaluations that carry no filters of their own.
	Filters     filtering.Config
	MaxSessions int
	MaxResumes  int
	// RunTimeout bounds one evaluation. Zero leaves it to the client connection.
	RunTimeout time.Duration
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

type Server struct {
	runner   Runner
	guides   *interview.Service
	sessions *sessionStore
	opts     Options
	logger   *zap.Logger
	engine   *gin.Engine
}

func New(runner Runner, guides *interview.Service, opts Options) *Server {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.MaxResumes <= 0 {
		opts.MaxResumes = DefaultMaxResumes
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		runner:   runner,
		guides:   guides,
		sessions: newSessionStore(opts.MaxSessions),
		opts:     opts,
		logger:   opts.Logger,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/evaluations", s.createEvaluation)
	v1.GET("/evaluations/:id", s.getEvaluation)
	v1.POST("/evaluations/:id/candidates/:candidate/interview-guide", s.createGuide)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, codeNotFound, "route not found")
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
