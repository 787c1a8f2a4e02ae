package scoring

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/extract"
	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/storage"
	"github.com/spigell/hh-scorer/internal/utils"
)

// DefaultMaxContextChars caps the document text handed to the evaluator.
const DefaultMaxContextChars = 25000

const (
	resumeHeader      = "## Resume"
	coverLetterHeader = "## Cover Letter"
)

// ContextBuilder assembles the evaluator input for an applicant.
type ContextBuilder interface {
	// Build returns false when the applicant does not exist.
	Build(ctx context.Context, applicantID int64) (*ai.ScoringContext, bool)
}

// Builder reads the applicant profile and up to two documents.
type Builder struct {
	applicants storage.ApplicantRepository
	extractor  extract.Extractor
	maxChars   int
	logger     *zap.Logger
}

var _ ContextBuilder = (*Builder)(nil)

// NewBuilder returns a builder. A non-positive maxChars selects DefaultMaxContextChars.
func NewBuilder(applicants storage.ApplicantRepository, extractor extract.Extractor, maxChars int, log *zap.Logger) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	return &Builder{
		applicants: applicants,
		extractor:  extractor,
		maxChars:   maxChars,
		logger:     logger.Component(log, "context"),
	}
}

func (b *Builder) Build(ctx context.Context, applicantID int64) (*ai.ScoringContext, bool) {
	applicant, err := b.applicants.GetApplicant(ctx, applicantID)
	if err != nil {
		b.logger.Error("loading applicant", append(logger.ApplicantFields(applicantID, ""), zap.Error(err))...)
		return nil, false
	}
	if applicant == nil {
		return nil, false
	}

	sections := make([]string, 0, 2)
	for _, doc := range []struct{ header, ref string }{
		{resumeHeader, applicant.ResumeRef},
		{coverLetterHeader, applicant.CoverLetterRef},
	} {
		if doc.ref == "" {
			continue
		}
		text := strings.TrimSpace(b.extractor.Extract(ctx, doc.ref))
		if text == "" {
			continue
		}
		sections = append(sections, doc.header+"\n"+text)
	}

	documents := utils.TruncateRunes(strings.Join(sections, "\n\n"), b.maxChars)

	b.logger.Debug("built scoring context",
		append(logger.ApplicantFields(applicantID, ""),
			zap.Int("documents", len(sections)),
			zap.Int("chars", len([]rune(documents))),
		)...,
	)

	return &ai.ScoringContext{
		ApplicantID:          applicant.ID,
		Name:                 applicant.Name,
		AppliedRole:          applicant.AppliedRole,
		Location:             applicant.Location,
		YearsExperience:      applicant.YearsExperience,
		ExpectedCompensation: applicant.ExpectedCompensation,
		Documents:            documents,
	}, true
}
