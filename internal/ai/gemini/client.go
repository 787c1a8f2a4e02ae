package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hh-scorer/internal/ai"
)

const (
	defaultModel       = "gemini-2.5-pro"
	defaultCallTimeout = 60 * time.Second

	opGenerate = "gemini generate content"
	opClient   = "gemini client"
)

// contentModels is the subset of genai.Models used by the generator.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeneratorConfig configures the Gemini transport.
type GeneratorConfig struct {
	APIKey      string
	Model       string
	CallTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Generator wraps the Google GenAI client to request schema-constrained JSON.
type Generator struct {
	models  contentModels
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
// Missing credentials and client construction failures are configuration errors.
func NewGenerator(ctx context.Context, cfg GeneratorConfig, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ai.NewError(ai.KindConfiguration, opClient, errors.New("gemini api key is required"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, ai.NewError(ai.KindConfiguration, opClient, fmt.Errorf("create genai client: %w", err))
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentModels, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Generator{
		models:  models,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gemini",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("gemini circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return g
}

// GenerateJSON sends the system instruction and user message to Gemini and
// returns the textual response, constrained to schema when one is given.
// Every error returned is an *ai.Error.
func (g *Generator) GenerateJSON(ctx context.Context, system, message string, schema *genai.Schema) (string, error) {
	if g == nil || g.models == nil {
		return "", ai.NewError(ai.KindConfiguration, opGenerate, errors.New("gemini generator is not initialized"))
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", ai.NewError(ai.KindConfiguration, opGenerate, errors.New("message must not be empty"))
	}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.call(ctx, genai.Text(message), config)
	if err != nil {
		return "", classify(err)
	}

	output := responseText(resp)
	if output == "" {
		return "", ai.NewError(ai.KindEmptyResponse, opGenerate, errors.New("gemini api returned empty response"))
	}

	return output, nil
}

func (g *Generator) call(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.breaker == nil {
		return g.models.GenerateContent(ctx, g.model, contents, config)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.models.GenerateContent(ctx, g.model, contents, config)
	})
	if err != nil {
		return nil, err
	}

	resp, _ := result.(*genai.GenerateContentResponse)
	return resp, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
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

	return strings.TrimSpace(builder.String())
}

// classify maps transport failures onto evaluator error kinds. Rejected
// credentials are configuration errors; everything else may pass on retry.
func classify(err error) *ai.Error {
	if code, ok := apiErrorCode(err); ok {
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ai.NewError(ai.KindConfiguration, opGenerate, err)
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ai.NewError(ai.KindTransient, opGenerate, fmt.Errorf("circuit open: %w", err))
	}

	return ai.NewError(ai.KindTransient, opGenerate, err)
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}

	return 0, false
}
