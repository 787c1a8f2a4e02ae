package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/hh-scorer/internal/utils"
)

const parseOp = "parse evaluation"

var errNotObject = errors.New("evaluation must be a JSON object")

// textFields holds the non-numeric part of the evaluation schema.
type textFields struct {
	RiskFlags       []string `mapstructure:"risk_flags"`
	Strengths       []string `mapstructure:"strengths"`
	Recommendations []string `mapstructure:"recommendations"`
	Rationale       string   `mapstructure:"rationale"`
}

// Parse decodes raw model output into an Evaluation. Output that is a JSON
// object as is parses strictly. Anything else is first unwrapped from fences
// and prose, and if that still fails it gets one syntactic repair pass; a
// recovered evaluation is tagged ProvenanceRepaired. Blank input is
// KindEmptyResponse, unrecoverable input is KindMalformedOutput. Both are retryable.
func Parse(raw string) (*Evaluation, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, NewError(KindEmptyResponse, parseOp, errors.New("model returned no content"))
	}

	if data, err := decodeObject(trimmed); err == nil {
		return fromDocument(data, trimmed, ProvenanceStrict), nil
	}

	cleaned := ExtractJSON(trimmed)
	if cleaned == "" {
		return nil, NewError(KindEmptyResponse, parseOp, errors.New("model returned no content"))
	}

	data, strictErr := decodeObject(cleaned)
	if strictErr == nil {
		return fromDocument(data, cleaned, ProvenanceStrict), nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return nil, NewError(KindMalformedOutput, parseOp, fmt.Errorf("%w (repair: %v)", strictErr, err))
	}

	data, err = decodeObject(repaired)
	if err != nil {
		return nil, NewError(KindMalformedOutput, parseOp, fmt.Errorf("%w (after repair: %v)", strictErr, err))
	}

	return fromDocument(data, repaired, ProvenanceRepaired), nil
}

// ExtractJSON unwraps a markdown fence that opens before the first object,
// drops prose in front of the object and, when the object is complete, any
// trailing text after it. Fences inside the object are left alone.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	open := strings.Index(raw, "{")
	if fence := strings.Index(raw, "```"); fence != -1 && (open == -1 || fence < open) {
		inner := raw[fence+3:]
		if len(inner) >= 4 && strings.EqualFold(inner[:4], "json") {
			inner = inner[4:]
		}
		if end := strings.LastIndex(inner, "```"); end != -1 {
			inner = inner[:end]
		}
		raw = strings.TrimSpace(inner)
	}

	if idx := strings.Index(raw, "{"); idx > 0 {
		raw = raw[idx:]
	}

	if end := strings.LastIndex(raw, "}"); end != -1 && end < len(raw)-1 {
		if candidate := raw[:end+1]; json.Valid([]byte(candidate)) {
			raw = candidate
		}
	}
	return raw
}

func decodeObject(doc string) (map[string]any, error) {
	var data any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return nil, err
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func fromDocument(data map[string]any, doc string, provenance Provenance) *Evaluation {
	text := decodeText(data)

	return &Evaluation{
		OverallScore:    coerceScore(data["overall_score"]),
		ExperienceFit:   coerceScore(data["experience_fit"]),
		SkillsFit:       coerceScore(data["skills_fit"]),
		CultureFit:      coerceScore(data["culture_fit"]),
		LocationFit:     coerceScore(data["location_fit"]),
		RiskFlags:       capList(text.RiskFlags),
		Strengths:       capList(text.Strengths),
		Recommendations: capList(text.Recommendations),
		Rationale:       utils.TruncateRunes(strings.TrimSpace(text.Rationale), MaxRationaleRunes),
		Provenance:      provenance,
		Raw:             json.RawMessage(doc),
	}
}

// decodeText decodes list and text fields leniently. Values mapstructure cannot
// weaken (objects inside lists, for instance) fall back to per-field coercion.
func decodeText(data map[string]any) textFields {
	var out textFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err == nil && decoder.Decode(data) == nil {
		return out
	}

	return textFields{
		RiskFlags:       coerceList(data["risk_flags"]),
		Strengths:       coerceList(data["strengths"]),
		Recommendations: coerceList(data["recommendations"]),
		Rationale:       coerceString(data["rationale"]),
	}
}

func capList(items []string) []string {
	out := make([]string, 0, min(len(items), MaxListItems))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, utils.TruncateRunes(item, MaxListItemRunes))
		if len(out) == MaxListItems {
			break
		}
	}
	return out
}

func coerceScore(v any) *float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Max(0, math.Min(MaxScore, f))
	return &f
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%"))
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, coerceString(item))
		}
		return out
	default:
		return []string{coerceString(val)}
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
