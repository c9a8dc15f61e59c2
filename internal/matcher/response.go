package matcher

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"jobpilot/internal/ai/gemini"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var responseSchema = mustSchema(schemaJSON)

func mustSchema(raw string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("matcher: compile response schema: %v", err))
	}
	return s
}

type aiResponse struct {
	CoreRequirements    []string `mapstructure:"core_requirements"`
	MatchedRequirements []string `mapstructure:"matched_requirements"`
	MatchedSkills       []string `mapstructure:"matched_skills"`
	MissingSkills       []string `mapstructure:"missing_skills"`
	SuggestedTests      []string `mapstructure:"suggested_tests"`
	KeyInsights         []string `mapstructure:"key_insights"`
	Score               any      `mapstructure:"score"`
}

// parseResponse validates raw model output against the response schema and
// decodes it.
func parseResponse(raw string) (aiResponse, error) {
	raw = gemini.ExtractJSON(raw)
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return aiResponse{}, fmt.Errorf("%w: decode json: %v", gemini.ErrInvalidResponse, err)
	}

	res, err := responseSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return aiResponse{}, fmt.Errorf("%w: %v", gemini.ErrInvalidResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return aiResponse{}, fmt.Errorf("%w: schema validation failed: %s", gemini.ErrInvalidResponse, strings.Join(msgs, "; "))
	}

	var out aiResponse
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return aiResponse{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return aiResponse{}, fmt.Errorf("%w: %v", gemini.ErrInvalidResponse, err)
	}
	return out, nil
}

// modelScore reads the optional score the model volunteered, accepting 0-1
// fractions and 0-100 percentages.
func (r aiResponse) modelScore() (float64, bool) {
	var f float64
	switch v := r.Score.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f > 1 {
		f /= 100
	}
	return clamp01(f), true
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
