package gemini

import (
	"google.golang.org/genai"

	"github.com/spigell/hh-scorer/internal/ai"
)

// EvaluationSchema is the response schema the model must follow.
func EvaluationSchema() *genai.Schema {
	minScore, maxScore := 0.0, float64(ai.MaxScore)
	nullable := true
	maxItems := int64(ai.MaxListItems)
	maxItemLen := int64(ai.MaxListItemRunes)
	maxRationale := int64(ai.MaxRationaleRunes)

	score := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeNumber,
			Description: description,
			Minimum:     &minScore,
			Maximum:     &maxScore,
			Nullable:    &nullable,
		}
	}

	list := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: description,
			MaxItems:    &maxItems,
			Items: &genai.Schema{
				Type:      genai.TypeString,
				MaxLength: &maxItemLen,
			},
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overall_score":   score("Overall fit, 0-100"),
			"experience_fit":  score("Experience fit, 0-100"),
			"skills_fit":      score("Skills fit, 0-100"),
			"culture_fit":     score("Culture fit, 0-100"),
			"location_fit":    score("Location fit, 0-100"),
			"risk_flags":      list("Concerns to verify"),
			"strengths":       list("Notable strengths"),
			"recommendations": list("Suggested next steps"),
			"rationale": {
				Type:        genai.TypeString,
				Description: "Explanation of the overall score",
				MaxLength:   &maxRationale,
			},
		},
		Required: []string{
			"overall_score", "experience_fit", "skills_fit", "culture_fit", "location_fit",
			"risk_flags", "strengths", "recommendations", "rationale",
		},
	}
}
