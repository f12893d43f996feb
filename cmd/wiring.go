package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/ai/gemini"
	"github.com/spigell/talentscout/internal/extraction"
	"github.com/spigell/talentscout/internal/interview"
	"github.com/spigell/talentscout/internal/logger"
	"github.com/spigell/talentscout/internal/metrics"
	"github.com/spigell/talentscout/internal/pipeline"
	"github.com/spigell/talentscout/internal/scoring"
	"github.com/spigell/talentscout/internal/secrets"
	"go.uber.org/zap"
)

// stack holds the components shared by the evaluate and serve commands.
type stack struct {
	pipeline *pipeline.Pipeline
	guides   *interview.Service
}

func newStack(ctx context.Context, config *Config, log *zap.Logger) (*stack, error) {
	gateway, err := newGateway(ctx, config, log)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()

	extractor := extraction.New(gateway,
		extraction.WithLogger(log),
		extraction.WithMetrics(recorder),
		extraction.WithMaxLengths(config.Pipeline.MaxJobLength, config.Pipeline.MaxResumeLength),
	)

	var reviewer scoring.Reviewer
	if config.Scoring.Qualitative {
		reviewer = scoring.NewGatewayReviewer(gateway, config.Scoring.MaxQualitativeAdjustment, recorder)
	}
	engine := scoring.NewEngine(config.Scoring, reviewer, log)

	return &stack{
		pipeline: pipeline.New(config.Pipeline, extractor, engine, recorder, log),
		guides:   interview.NewService(interview.NewGenerator(gateway, recorder, log), recorder, log),
	}, nil
}

func newGateway(ctx context.Context, config *Config, log *zap.Logger) (ai.Gateway, error) {
	cfg := config.Gemini

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", cfg.Model).With(
		zap.Int("ai_retry_attempts", config.Retry.MaxAttempts),
	)

	generator, err := gemini.NewGenerator(ctx, gemini.GeneratorConfig{
		APIKey:            apiKey,
		Model:             cfg.Model,
		FallbackModel:     cfg.FallbackModel,
		Temperature:       cfg.Temperature,
		RequestsPerMinute: cfg.RequestsPerMinute,
		ResponseSchema:    cfg.ResponseSchema,
	}, genLogger)
	if err != nil {
		return nil, err
	}

	gateway, err := gemini.NewGateway(generator, cfg.MaxLogLength, genLogger)
	if err != nil {
		return nil, err
	}
	gateway.SetPromptOverrides(gemini.PromptOverrides{
		UserInstructions: config.Prompts.Instructions,
		FocusAreas:       config.Prompts.FocusAreas,
	})

	return ai.NewRetrying(gateway, config.Retry, genLogger), nil
}

func newLogger() (*zap.Logger, error) {
	return logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		Level: viper.GetString("log-level"),
	})
}
