package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/utils"
)

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, message string, schema *genai.Schema) (string, error)
	Model() string
}

//go:embed prompt.md
var systemPrompt string

const (
	defaultMaxLogLength = 200
	provider            = "gemini"
)

// Evaluator scores applicants with Gemini structured output.
type Evaluator struct {
	generator jsonGenerator
	version   string
	logger    *zap.Logger
	maxLogLen int
}

// NewEvaluator returns an Evaluator tagging its results with version.
func NewEvaluator(generator jsonGenerator, version string, maxLogLength int, log *zap.Logger) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Evaluator{
		generator: generator,
		version:   strings.TrimSpace(version),
		logger:    logger.WithFields(log, logger.CommonFields(provider, generator.Model())...),
		maxLogLen: maxLogLength,
	}
}

// Model returns the model used for evaluations.
func (e *Evaluator) Model() string {
	return e.generator.Model()
}

// Evaluate requests one structured evaluation for sc.
func (e *Evaluator) Evaluate(ctx context.Context, sc *ai.ScoringContext) (*ai.Evaluation, error) {
	if sc == nil {
		return nil, errors.New("scoring context is required")
	}

	message, err := buildMessage(sc)
	if err != nil {
		return nil, err
	}

	log := logger.WithFields(e.logger, logger.ApplicantFields(sc.ApplicantID, e.version)...)
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateJSON(ctx, systemPrompt, message, EvaluationSchema())
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	evaluation, err := ai.Parse(raw)
	if err != nil {
		log.Warn("gemini response could not be parsed",
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
			zap.Error(err),
		)
		return nil, err
	}

	if evaluation.Provenance == ai.ProvenanceRepaired {
		log.Info("gemini response needed repair before parsing")
	}

	evaluation.Model = e.generator.Model()
	evaluation.Version = e.version
	return evaluation, nil
}

type profilePayload struct {
	Name                 string   `json:"name,omitempty"`
	AppliedRole          string   `json:"applied_role,omitempty"`
	Location             string   `json:"location,omitempty"`
	YearsExperience      *float64 `json:"years_of_experience,omitempty"`
	ExpectedCompensation string   `json:"expected_compensation,omitempty"`
}

func buildMessage(sc *ai.ScoringContext) (string, error) {
	profile, err := json.MarshalIndent(profilePayload{
		Name:                 sc.Name,
		AppliedRole:          sc.AppliedRole,
		Location:             sc.Location,
		YearsExperience:      sc.YearsExperience,
		ExpectedCompensation: sc.ExpectedCompensation,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal applicant profile: %w", err)
	}

	documents := strings.TrimSpace(sc.Documents)
	if documents == "" {
		documents = "(no application materials available)"
	}

	var b strings.Builder
	b.WriteString("Applicant profile:\n")
	b.Write(profile)
	b.WriteString("\n\nApplication materials:\n")
	b.WriteString(documents)

	return strings.ToValidUTF8(b.String(), "�"), nil
}
