package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultModel         = "gemini-2.0-flash"
	defaultFallbackModel = "gemini-flash-latest"
	defaultTemperature   = 0.2

	provider = "gemini"
)

var errEmptyResponse = errors.New("gemini api returned empty response")

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.chats.Create(ctx, model, config, history)
}

// GeneratorConfig describes how to reach Gemini.
type GeneratorConfig struct {
	APIKey        string
	Model         string
	FallbackModel string
	Temperature   float32
	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int
	// ResponseSchema forwards the output schema to the API.
	ResponseSchema bool
}

// Generator wraps the Google GenAI chats API and maps provider failures onto
// the gateway error contract.
type Generator struct {
	chats          chatCreator
	limiter        *rate.Limiter
	temperature    float32
	responseSchema bool
	logger         *zap.Logger

	mu       sync.Mutex
	model    string
	fallback string
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg GeneratorConfig, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, cfg, log), nil
}

func newGenerator(chats chatCreator, cfg GeneratorConfig, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	fallback := strings.TrimSpace(cfg.FallbackModel)
	if fallback == model {
		fallback = ""
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Generator{
		chats:          chats,
		limiter:        limiter,
		temperature:    temperature,
		responseSchema: cfg.ResponseSchema,
		logger:         logger.WithCommonFields(log, provider, model),
		model:          model,
		fallback:       fallback,
	}
}

// GenerateContent sends the system instruction and the message in a fresh chat
// and returns the textual reply.
func (g *Generator) GenerateContent(ctx context.Context, systemPrompt, message string, schema map[string]any) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	}
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if g.responseSchema && schema != nil {
		config.ResponseJsonSchema = schema
	}

	model := g.Model()
	output, err := g.send(ctx, model, config, message)
	if err == nil {
		return output, nil
	}

	if fallback, ok := g.switchToFallback(model, err); ok {
		g.logger.Warn("gemini model not found, switching to fallback model",
			zap.String("model", model),
			zap.String("fallback_model", fallback),
		)
		output, err = g.send(ctx, fallback, config, message)
		if err == nil {
			return output, nil
		}
	}

	return "", classify(err)
}

func (g *Generator) send(ctx context.Context, model string, config *genai.GenerateContentConfig, message string) (string, error) {
	chat, err := g.chats.Create(ctx, model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return responseText(resp)
}

// switchToFallback moves the generator to the fallback model once, after the
// primary model reported 404.
func (g *Generator) switchToFallback(model string, err error) (string, bool) {
	if statusCode(err) != http.StatusNotFound {
		return "", false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fallback == "" {
		return "", false
	}
	if g.model == model {
		g.model = g.fallback
		g.fallback = ""
		return g.model, true
	}
	return "", false
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errEmptyResponse
	}

	return output, nil
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func statusCode(err error) int {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code
	}
	return 0
}

// classify maps provider failures onto the gateway error contract.
func classify(err error) error {
	if err == nil || errors.Is(err, errEmptyResponse) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return ai.Unavailable(err)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ai.Unavailable(err)
		}
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED"):
		return &ai.RateLimitError{RetryAfter: retryDelay(apiErr), Err: err}
	case apiErr.Code >= http.StatusInternalServerError,
		apiErr.Code == http.StatusRequestTimeout,
		strings.EqualFold(apiErr.Status, "UNAVAILABLE"),
		strings.EqualFold(apiErr.Status, "DEADLINE_EXCEEDED"):
		return ai.Unavailable(err)
	default:
		return &ai.RejectedError{Code: apiErr.Code, Err: err}
	}
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(ms|s|sec|secs|seconds?)?`)

// retryDelay reads the delay Gemini asks for, either from RetryInfo details or
// from the message text.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		kind, _ := detail["@type"].(string)
		if !strings.HasSuffix(kind, "RetryInfo") {
			continue
		}
		if raw, ok := detail["retryDelay"].(string); ok {
			if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
				return d
			}
		}
	}

	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if match == nil {
		return 0
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(match[2], "ms") {
		return time.Duration(value * float64(time.Millisecond))
	}
	return time.Duration(value * float64(time.Second))
}
