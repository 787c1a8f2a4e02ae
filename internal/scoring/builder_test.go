package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-scorer/internal/storage"
)

type stubApplicants struct {
	applicant *storage.Applicant
	err       error
}

func (s stubApplicants) GetApplicant(context.Context, int64) (*storage.Applicant, error) {
	return s.applicant, s.err
}

func (s stubApplicants) ListUnscored(context.Context, int) ([]int64, error) { return nil, nil }

func (s stubApplicants) CreateApplicant(context.Context, *storage.Applicant) (int64, error) {
	return 0, nil
}

func TestBuildCombinesDocuments(t *testing.T) {
	years := 6.0
	applicants := stubApplicants{applicant: &storage.Applicant{
		ID:              5,
		Name:            "Ada",
		AppliedRole:     "SRE",
		Location:        "Berlin",
		YearsExperience: &years,
		ResumeRef:       "cv.txt",
		CoverLetterRef:  "letter.txt",
	}}
	extractor := stubExtractor{"cv.txt": "  resume body  ", "letter.txt": "letter body"}

	sc, ok := NewBuilder(applicants, extractor, 0, nil).Build(context.Background(), 5)
	require.True(t, ok)

	assert.Equal(t, "## Resume\nresume body\n\n## Cover Letter\nletter body", sc.Documents)
	assert.Equal(t, "SRE", sc.AppliedRole)
	assert.Equal(t, 6.0, *sc.YearsExperience)
}

func TestBuildSkipsFailedExtraction(t *testing.T) {
	applicants := stubApplicants{applicant: &storage.Applicant{ID: 5, ResumeRef: "missing.pdf", CoverLetterRef: "letter.txt"}}

	sc, ok := NewBuilder(applicants, stubExtractor{"letter.txt": "only letter"}, 0, nil).Build(context.Background(), 5)
	require.True(t, ok)
	assert.Equal(t, "## Cover Letter\nonly letter", sc.Documents)
}

func TestBuildWithoutDocuments(t *testing.T) {
	applicants := stubApplicants{applicant: &storage.Applicant{ID: 5, Name: "Bare"}}

	sc, ok := NewBuilder(applicants, stubExtractor{}, 0, nil).Build(context.Background(), 5)
	require.True(t, ok)
	assert.Empty(t, sc.Documents)
	assert.Equal(t, "Bare", sc.Name)
}

func TestBuildTruncatesToCap(t *testing.T) {
	applicants := stubApplicants{applicant: &storage.Applicant{ID: 1, ResumeRef: "cv.txt"}}
	extractor := stubExtractor{"cv.txt": strings.Repeat("я", 100)}

	sc, ok := NewBuilder(applicants, extractor, 20, nil).Build(context.Background(), 1)
	require.True(t, ok)
	assert.Len(t, []rune(sc.Documents), 20)
	assert.True(t, strings.HasPrefix(sc.Documents, resumeHeader))
}

func TestBuildDefaultCap(t *testing.T) {
	applicants := stubApplicants{applicant: &storage.Applicant{ID: 1, ResumeRef: "cv.txt"}}
	extractor := stubExtractor{"cv.txt": strings.Repeat("x", DefaultMaxContextChars*2)}

	sc, ok := NewBuilder(applicants, extractor, 0, nil).Build(context.Background(), 1)
	require.True(t, ok)
	assert.Len(t, sc.Documents, DefaultMaxContextChars)
}

func TestBuildNotFound(t *testing.T) {
	tests := []struct {
		name       string
		applicants stubApplicants
	}{
		{name: "missing", applicants: stubApplicants{}},
		{name: "lookup error", applicants: stubApplicants{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, ok := NewBuilder(tt.applicants, stubExtractor{}, 0, nil).Build(context.Background(), 9)
			assert.False(t, ok)
			assert.Nil(t, sc)
		})
	}
}
